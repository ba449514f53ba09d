package domain

import (
	"time"

	"github.com/google/uuid"
)

type EntryKind string

const (
	EntryWithdraw EntryKind = "withdraw"
	EntryDeposit  EntryKind = "deposit"
	EntryTransfer EntryKind = "transfer"
	EntryBill     EntryKind = "bill"
)

type BillKind string

const (
	BillElectricity BillKind = "electricity"
	BillWater       BillKind = "water"
	BillGas         BillKind = "gas"
	BillPhone       BillKind = "phone"
)

// ValidBillKind reports whether k is one of the supported bill kinds.
func ValidBillKind(k BillKind) bool {
	switch k {
	case BillElectricity, BillWater, BillGas, BillPhone:
		return true
	}
	return false
}

// LedgerEntry is one immutable record of a completed balance-changing
// operation. ResultingBalance snapshots the current balance immediately
// after the entry was applied; it is stored at write time, never recomputed.
type LedgerEntry struct {
	ID               uuid.UUID `json:"id"`
	Kind             EntryKind `json:"kind"`
	Amount           int64     `json:"amount"`
	Description      string    `json:"description"`
	Timestamp        time.Time `json:"timestamp"`
	ResultingBalance int64     `json:"resulting_balance"`
}

// Signed returns the entry amount with the sign it applies to the current
// balance: deposits add, everything else subtracts.
func (e LedgerEntry) Signed() int64 {
	if e.Kind == EntryDeposit {
		return e.Amount
	}
	return -e.Amount
}
