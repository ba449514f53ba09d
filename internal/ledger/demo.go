package ledger

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mjfrontdev/atm-simulation/internal/domain"
	"github.com/mjfrontdev/atm-simulation/internal/errors"
)

// Demo account credentials, matching the walk-up demo card the original
// login screen seeds on first use.
const (
	DemoCardNumber = "1234-5678-9012-3456"
	DemoPIN        = "1234"
)

// EnsureDemoAccount creates the demo account if it does not exist yet.
// Returns true when a new account was seeded.
func (s *Service) EnsureDemoAccount() (bool, error) {
	if _, err := s.store.GetAccount(DemoCardNumber); err == nil {
		return false, nil
	} else if errors.Code(err) != errors.AccountNotFound {
		return false, err
	}

	pinHash, err := bcrypt.GenerateFromPassword([]byte(DemoPIN), bcrypt.DefaultCost)
	if err != nil {
		return false, errors.NewAppError(errors.InternalError, "failed to hash PIN").WithDetails(err.Error())
	}

	now := time.Now().UTC()
	account := &domain.Account{
		CardNumber: DemoCardNumber,
		PINHash:    string(pinHash),
		OwnerName:  "Demo User",
		Email:      "default@atm.com",
		Phone:      "09123456789",
		Balances: domain.Balances{
			Current:    5_000_000,
			Savings:    2_000_000,
			Investment: 1_000_000,
		},
		DailyLimit: DefaultDailyLimit,
		CreatedAt:  now,
		UpdatedAt:  now,
		Transactions: []domain.LedgerEntry{
			{
				ID:               uuid.New(),
				Kind:             domain.EntryDeposit,
				Amount:           5_000_000,
				Description:      "opening deposit",
				Timestamp:        now,
				ResultingBalance: 5_000_000,
			},
		},
	}

	if err := s.store.CreateAccount(account); err != nil {
		// Lost the race to another process seeding the same card.
		if errors.Code(err) == errors.DuplicateAccount {
			return false, nil
		}
		return false, err
	}

	s.logger.Info("demo account seeded", "card_number", DemoCardNumber)
	return true, nil
}
