package store

import (
	"sync"

	"github.com/mjfrontdev/atm-simulation/internal/domain"
	"github.com/mjfrontdev/atm-simulation/internal/errors"
)

// MemoryStore keeps account records in a map guarded by one mutex. It
// honors the same versioned-write contract as the SQLite store and is the
// backend of choice for tests and ephemeral runs.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	session  string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*domain.Account),
	}
}

// copyAccount returns a deep copy so callers can never mutate stored state
// without going through UpdateAccount.
func copyAccount(a *domain.Account) *domain.Account {
	cp := *a
	cp.Transactions = make([]domain.LedgerEntry, len(a.Transactions))
	copy(cp.Transactions, a.Transactions)
	return &cp
}

func (s *MemoryStore) CreateAccount(account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(account)
}

func (s *MemoryStore) createLocked(account *domain.Account) error {
	if _, ok := s.accounts[account.CardNumber]; ok {
		return errors.ErrDuplicateAccount
	}
	account.Version = 1
	s.accounts[account.CardNumber] = copyAccount(account)
	return nil
}

func (s *MemoryStore) GetAccount(cardNumber string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(cardNumber)
}

func (s *MemoryStore) getLocked(cardNumber string) (*domain.Account, error) {
	account, ok := s.accounts[cardNumber]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	return copyAccount(account), nil
}

func (s *MemoryStore) UpdateAccount(account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(account)
}

func (s *MemoryStore) updateLocked(account *domain.Account) error {
	stored, ok := s.accounts[account.CardNumber]
	if !ok {
		return errors.ErrAccountNotFound
	}
	if stored.Version != account.Version {
		return errors.ErrConcurrentModification
	}
	account.Version++
	s.accounts[account.CardNumber] = copyAccount(account)
	return nil
}

func (s *MemoryStore) ListAccounts() ([]*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked()
}

func (s *MemoryStore) listLocked() ([]*domain.Account, error) {
	out := make([]*domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, copyAccount(a))
	}
	return out, nil
}

// WithTransaction runs fn while holding the store lock. The account map is
// snapshotted first and restored if fn fails, so partial multi-account
// updates never become visible.
func (s *MemoryStore) WithTransaction(fn func(store domain.AccountStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string]*domain.Account, len(s.accounts))
	for k, v := range s.accounts {
		snapshot[k] = copyAccount(v)
	}

	if err := fn(&memoryTx{store: s}); err != nil {
		s.accounts = snapshot
		return err
	}
	return nil
}

// memoryTx exposes the store without re-acquiring the lock held by
// WithTransaction.
type memoryTx struct {
	store *MemoryStore
}

func (t *memoryTx) CreateAccount(account *domain.Account) error {
	return t.store.createLocked(account)
}

func (t *memoryTx) GetAccount(cardNumber string) (*domain.Account, error) {
	return t.store.getLocked(cardNumber)
}

func (t *memoryTx) UpdateAccount(account *domain.Account) error {
	return t.store.updateLocked(account)
}

func (t *memoryTx) ListAccounts() ([]*domain.Account, error) {
	return t.store.listLocked()
}

func (t *memoryTx) WithTransaction(fn func(store domain.AccountStore) error) error {
	return fn(t)
}

func (s *MemoryStore) SetSession(cardNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = cardNumber
	return nil
}

func (s *MemoryStore) GetSession() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session, nil
}

func (s *MemoryStore) ClearSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = ""
	return nil
}
