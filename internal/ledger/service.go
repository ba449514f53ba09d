package ledger

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mjfrontdev/atm-simulation/internal/domain"
	"github.com/mjfrontdev/atm-simulation/internal/errors"
)

const (
	// OpeningBalance is credited to every new account as its first ledger entry.
	OpeningBalance int64 = 1_000_000
	// DefaultDailyLimit caps any single withdrawal.
	DefaultDailyLimit int64 = 5_000_000

	// Card-number generation retries before giving up on collisions.
	maxCardAttempts = 5
)

var pinPattern = regexp.MustCompile(`^[0-9]{4}$`)

// Service is the ledger engine. It validates and applies monetary operations
// against account records. All state lives in the store; the service itself
// is stateless between calls.
type Service struct {
	store  domain.AccountStore
	logger *slog.Logger
}

func NewService(store domain.AccountStore, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

type OpenAccountRequest struct {
	OwnerName string
	Email     string
	Phone     string
	PIN       string

	// CardNumber is optional; when empty the engine generates one,
	// resampling on collision.
	CardNumber string
}

// OpenAccount creates a new account with the opening balance credited as the
// first ledger entry. The PIN is stored as a bcrypt hash, never in clear.
func (s *Service) OpenAccount(req OpenAccountRequest) (*domain.Account, error) {
	if strings.TrimSpace(req.OwnerName) == "" ||
		strings.TrimSpace(req.Email) == "" ||
		strings.TrimSpace(req.Phone) == "" {
		return nil, errors.NewAppError(errors.InvalidInput, "name, email and phone are required")
	}
	if !pinPattern.MatchString(req.PIN) {
		return nil, errors.NewAppError(errors.InvalidInput, "PIN must be exactly 4 digits")
	}

	pinHash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to hash PIN").WithDetails(err.Error())
	}

	now := time.Now().UTC()
	account := &domain.Account{
		PINHash:   string(pinHash),
		OwnerName: strings.TrimSpace(req.OwnerName),
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		Balances: domain.Balances{
			Current:    OpeningBalance,
			Savings:    0,
			Investment: 0,
		},
		DailyLimit: DefaultDailyLimit,
		CreatedAt:  now,
		UpdatedAt:  now,
		Transactions: []domain.LedgerEntry{
			{
				ID:               uuid.New(),
				Kind:             domain.EntryDeposit,
				Amount:           OpeningBalance,
				Description:      "opening deposit",
				Timestamp:        now,
				ResultingBalance: OpeningBalance,
			},
		},
	}

	if req.CardNumber != "" {
		account.CardNumber = req.CardNumber
		if err := s.store.CreateAccount(account); err != nil {
			return nil, err
		}
		s.logger.Info("account opened", "card_number", account.CardNumber)
		return account, nil
	}

	for attempt := 0; attempt < maxCardAttempts; attempt++ {
		account.CardNumber = generateCardNumber()
		err := s.store.CreateAccount(account)
		if err == nil {
			s.logger.Info("account opened", "card_number", account.CardNumber)
			return account, nil
		}
		if errors.Code(err) != errors.DuplicateAccount {
			return nil, err
		}
		s.logger.Warn("card number collision, resampling", "attempt", attempt+1)
	}
	return nil, errors.ErrDuplicateAccount
}

// Authenticate returns the account matching the card number and PIN.
// Lookup misses and PIN mismatches are indistinguishable to the caller.
// There is no rate limiting or lockout; that is a known gap, not a feature.
func (s *Service) Authenticate(cardNumber, pin string) (*domain.Account, error) {
	account, err := s.store.GetAccount(cardNumber)
	if err != nil {
		if errors.Code(err) == errors.AccountNotFound {
			return nil, errors.ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PINHash), []byte(pin)) != nil {
		s.logger.Warn("failed login attempt", "card_number", cardNumber)
		return nil, errors.ErrInvalidCredentials
	}

	return account, nil
}

// Withdraw debits the current balance. Checks run in the same order as the
// original flow: amount validity, then funds, then the per-operation limit.
func (s *Service) Withdraw(account *domain.Account, amount int64) (*domain.Account, *domain.LedgerEntry, error) {
	if amount <= 0 {
		return nil, nil, errors.ErrInvalidAmount
	}
	if amount > account.Balances.Current {
		return nil, nil, errors.ErrInsufficientFunds
	}
	if amount > account.DailyLimit {
		return nil, nil, errors.ErrLimitExceeded
	}

	return s.commit(account, domain.EntryWithdraw, amount, "ATM cash withdrawal", nil)
}

// Deposit credits the current balance. No upper bound.
func (s *Service) Deposit(account *domain.Account, amount int64) (*domain.Account, *domain.LedgerEntry, error) {
	if amount <= 0 {
		return nil, nil, errors.ErrInvalidAmount
	}

	return s.commit(account, domain.EntryDeposit, amount, "cash deposit", nil)
}

// Transfer moves money to another card as a true double entry: the sender is
// debited and the destination account is credited in the same store
// transaction. A transfer to an unknown card fails and applies nothing.
func (s *Service) Transfer(account *domain.Account, destinationCard string, amount int64, note string) (*domain.Account, *domain.LedgerEntry, error) {
	if amount <= 0 {
		return nil, nil, errors.ErrInvalidAmount
	}
	if destinationCard == account.CardNumber {
		return nil, nil, errors.ErrSameAccountTransfer
	}
	if amount > account.Balances.Current {
		return nil, nil, errors.ErrInsufficientFunds
	}

	description := fmt.Sprintf("transfer to card %s", destinationCard)
	if strings.TrimSpace(note) != "" {
		description += ": " + strings.TrimSpace(note)
	}

	return s.commit(account, domain.EntryTransfer, amount, description, func(tx domain.AccountStore, at time.Time) error {
		destination, err := tx.GetAccount(destinationCard)
		if err != nil {
			return err
		}

		newBalance := destination.Balances.Current + amount
		credit := domain.LedgerEntry{
			ID:               uuid.New(),
			Kind:             domain.EntryDeposit,
			Amount:           amount,
			Description:      fmt.Sprintf("transfer from card %s", account.CardNumber),
			Timestamp:        at,
			ResultingBalance: newBalance,
		}
		destination.Balances.Current = newBalance
		destination.UpdatedAt = at
		destination.Transactions = append([]domain.LedgerEntry{credit}, destination.Transactions...)

		return tx.UpdateAccount(destination)
	})
}

// PayBill debits the current balance for one of the supported bill kinds.
func (s *Service) PayBill(account *domain.Account, billKind domain.BillKind, billReference string, amount int64) (*domain.Account, *domain.LedgerEntry, error) {
	if !domain.ValidBillKind(billKind) {
		return nil, nil, errors.NewAppErrorf(errors.InvalidInput, "unknown bill kind %q", billKind)
	}
	if strings.TrimSpace(billReference) == "" {
		return nil, nil, errors.NewAppError(errors.InvalidInput, "bill reference is required")
	}
	if amount <= 0 {
		return nil, nil, errors.ErrInvalidAmount
	}
	if amount > account.Balances.Current {
		return nil, nil, errors.ErrInsufficientFunds
	}

	description := fmt.Sprintf("%s bill payment, reference %s", billKind, billReference)
	return s.commit(account, domain.EntryBill, amount, description, nil)
}

// ComputeTotalBalance sums the three sub-account balances. Pure read.
func (s *Service) ComputeTotalBalance(account *domain.Account) int64 {
	return account.TotalBalance()
}

// Statement returns the newest-first ledger entries, at most limit of them
// (limit <= 0 means all).
func (s *Service) Statement(account *domain.Account, limit int) []domain.LedgerEntry {
	entries := account.Transactions
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	out := make([]domain.LedgerEntry, len(entries))
	copy(out, entries)
	return out
}

// commit applies the uniform mutating shape shared by every operation:
// compute the new balance, build the entry with its resulting-balance
// snapshot, prepend it to the log, and persist the whole record with a
// version-checked write. The caller's account value is never touched, so a
// failed operation applies nothing.
func (s *Service) commit(
	account *domain.Account,
	kind domain.EntryKind,
	amount int64,
	description string,
	extra func(tx domain.AccountStore, at time.Time) error,
) (*domain.Account, *domain.LedgerEntry, error) {
	now := time.Now().UTC()

	entry := domain.LedgerEntry{
		ID:          uuid.New(),
		Kind:        kind,
		Amount:      amount,
		Description: description,
		Timestamp:   now,
	}

	updated := cloneAccount(account)
	newBalance := updated.Balances.Current + entry.Signed()
	if newBalance < 0 {
		return nil, nil, errors.ErrInsufficientFunds
	}
	entry.ResultingBalance = newBalance

	updated.Balances.Current = newBalance
	updated.UpdatedAt = now
	updated.Transactions = append([]domain.LedgerEntry{entry}, updated.Transactions...)

	err := s.store.WithTransaction(func(tx domain.AccountStore) error {
		if err := tx.UpdateAccount(updated); err != nil {
			return err
		}
		if extra != nil {
			return extra(tx, now)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("operation rejected",
			"kind", kind,
			"card_number", account.CardNumber,
			"amount", amount,
			"error", err)
		return nil, nil, err
	}

	s.logger.Info("operation committed",
		"kind", kind,
		"card_number", account.CardNumber,
		"amount", amount,
		"resulting_balance", newBalance)
	return updated, &entry, nil
}

func cloneAccount(a *domain.Account) *domain.Account {
	cp := *a
	cp.Transactions = make([]domain.LedgerEntry, len(a.Transactions))
	copy(cp.Transactions, a.Transactions)
	return &cp
}
