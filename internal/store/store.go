package store

import (
	"github.com/mjfrontdev/atm-simulation/internal/domain"
)

// Both backends satisfy the full store contract.
var (
	_ domain.AccountStore = (*MemoryStore)(nil)
	_ domain.SessionStore = (*MemoryStore)(nil)
	_ domain.AccountStore = (*memoryTx)(nil)
	_ domain.AccountStore = (*SQLiteStore)(nil)
	_ domain.SessionStore = (*SQLiteStore)(nil)
)
