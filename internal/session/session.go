package session

import (
	"log/slog"

	"github.com/mjfrontdev/atm-simulation/internal/domain"
	"github.com/mjfrontdev/atm-simulation/internal/errors"
	"github.com/mjfrontdev/atm-simulation/internal/ledger"
)

// ErrNoSession is returned when no account is logged in.
var ErrNoSession = errors.NewAppError(errors.InvalidInput, "no active session")

// Manager tracks which account the presentation layer is operating on. The
// pointer lives in the store as an explicit value; neither the manager nor
// the engine reads ambient state.
type Manager struct {
	engine   *ledger.Service
	accounts domain.AccountStore
	sessions domain.SessionStore
	logger   *slog.Logger
}

func NewManager(engine *ledger.Service, accounts domain.AccountStore, sessions domain.SessionStore, logger *slog.Logger) *Manager {
	return &Manager{
		engine:   engine,
		accounts: accounts,
		sessions: sessions,
		logger:   logger,
	}
}

// Login authenticates the credentials and records the session pointer.
func (m *Manager) Login(cardNumber, pin string) (*domain.Account, error) {
	account, err := m.engine.Authenticate(cardNumber, pin)
	if err != nil {
		return nil, err
	}
	if err := m.sessions.SetSession(account.CardNumber); err != nil {
		return nil, err
	}
	m.logger.Info("session started", "card_number", account.CardNumber)
	return account, nil
}

// Current resolves the session pointer to a fresh copy of the account, so
// the caller always operates on the latest stored version.
func (m *Manager) Current() (*domain.Account, error) {
	cardNumber, err := m.sessions.GetSession()
	if err != nil {
		return nil, err
	}
	if cardNumber == "" {
		return nil, ErrNoSession
	}
	return m.accounts.GetAccount(cardNumber)
}

// Logout clears the session pointer. Engine state is untouched.
func (m *Manager) Logout() error {
	if err := m.sessions.ClearSession(); err != nil {
		return err
	}
	m.logger.Info("session ended")
	return nil
}
