package domain

import (
	"time"
)

// Balances holds the three independent sub-account balances, in whole
// minor currency units. Each one stays >= 0 at all times.
type Balances struct {
	Current    int64 `json:"current"`
	Savings    int64 `json:"savings"`
	Investment int64 `json:"investment"`
}

type Account struct {
	CardNumber string    `json:"card_number"`
	PINHash    string    `json:"pin_hash"`
	OwnerName  string    `json:"owner_name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Balances   Balances  `json:"balances"`
	DailyLimit int64     `json:"daily_limit"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Version increments on every successful store write. A write whose
	// expected version no longer matches the stored one is rejected, so
	// concurrent read-modify-write cycles cannot silently lose updates.
	Version int64 `json:"version"`

	// Transactions is the append-only ledger, newest first.
	Transactions []LedgerEntry `json:"transactions"`
}

// TotalBalance is the sum of all three sub-account balances.
func (a *Account) TotalBalance() int64 {
	return a.Balances.Current + a.Balances.Savings + a.Balances.Investment
}

type AccountStore interface {
	CreateAccount(account *Account) error
	GetAccount(cardNumber string) (*Account, error)
	// UpdateAccount persists the given state if the stored version still
	// equals account.Version, then bumps the version. A stale version
	// fails with ErrConcurrentModification.
	UpdateAccount(account *Account) error
	ListAccounts() ([]*Account, error)
	WithTransaction(fn func(store AccountStore) error) error
}

// SessionStore holds the single "current session" pointer: the card number
// of the account the presentation layer is operating on.
type SessionStore interface {
	SetSession(cardNumber string) error
	GetSession() (string, error)
	ClearSession() error
}
