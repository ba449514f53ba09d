package ledger

import (
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/mjfrontdev/atm-simulation/internal/domain"
	"github.com/mjfrontdev/atm-simulation/internal/errors"
	"github.com/mjfrontdev/atm-simulation/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	memStore := store.NewMemoryStore()
	logger := slog.New(slog.DiscardHandler)
	return NewService(memStore, logger), memStore
}

func openTestAccount(t *testing.T, svc *Service) *domain.Account {
	t.Helper()
	account, err := svc.OpenAccount(OpenAccountRequest{
		OwnerName: "Test User",
		Email:     "test@example.com",
		Phone:     "09120000000",
		PIN:       "4321",
	})
	require.NoError(t, err)
	return account
}

func TestOpenAccount(t *testing.T) {
	svc, _ := newTestService(t)

	account := openTestAccount(t, svc)

	assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{4}$`), account.CardNumber)
	assert.Equal(t, OpeningBalance, account.Balances.Current)
	assert.Equal(t, int64(0), account.Balances.Savings)
	assert.Equal(t, int64(0), account.Balances.Investment)
	assert.Equal(t, DefaultDailyLimit, account.DailyLimit)
	assert.Equal(t, int64(1), account.Version)

	require.Len(t, account.Transactions, 1)
	seed := account.Transactions[0]
	assert.Equal(t, domain.EntryDeposit, seed.Kind)
	assert.Equal(t, OpeningBalance, seed.Amount)
	assert.Equal(t, OpeningBalance, seed.ResultingBalance)

	assert.NoError(t, ValidateLedger(account))

	// PIN is stored hashed, never in clear.
	assert.NotEqual(t, "4321", account.PINHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(account.PINHash), []byte("4321")))
}

func TestOpenAccountValidation(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name string
		req  OpenAccountRequest
	}{
		{"missing name", OpenAccountRequest{Email: "a@b.c", Phone: "1", PIN: "1234"}},
		{"missing email", OpenAccountRequest{OwnerName: "A", Phone: "1", PIN: "1234"}},
		{"missing phone", OpenAccountRequest{OwnerName: "A", Email: "a@b.c", PIN: "1234"}},
		{"short pin", OpenAccountRequest{OwnerName: "A", Email: "a@b.c", Phone: "1", PIN: "123"}},
		{"long pin", OpenAccountRequest{OwnerName: "A", Email: "a@b.c", Phone: "1", PIN: "12345"}},
		{"non-numeric pin", OpenAccountRequest{OwnerName: "A", Email: "a@b.c", Phone: "1", PIN: "12a4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.OpenAccount(tt.req)
			require.Error(t, err)
			assert.Equal(t, errors.InvalidInput, errors.Code(err))
		})
	}
}

func TestOpenAccountDuplicateCard(t *testing.T) {
	svc, _ := newTestService(t)

	req := OpenAccountRequest{
		OwnerName:  "Test User",
		Email:      "test@example.com",
		Phone:      "09120000000",
		PIN:        "4321",
		CardNumber: "1111-2222-3333-4444",
	}

	_, err := svc.OpenAccount(req)
	require.NoError(t, err)

	_, err = svc.OpenAccount(req)
	require.Error(t, err)
	assert.Equal(t, errors.DuplicateAccount, errors.Code(err))
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	account := openTestAccount(t, svc)

	got, err := svc.Authenticate(account.CardNumber, "4321")
	require.NoError(t, err)
	assert.Equal(t, account.CardNumber, got.CardNumber)

	_, err = svc.Authenticate(account.CardNumber, "0000")
	assert.Equal(t, errors.InvalidCredentials, errors.Code(err))

	// Unknown cards fail the same way as wrong PINs.
	_, err = svc.Authenticate("9999-9999-9999-9999", "4321")
	assert.Equal(t, errors.InvalidCredentials, errors.Code(err))
}

func TestWithdraw(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		wantCode errors.ErrorCode
	}{
		{"zero amount", 0, errors.InvalidAmount},
		{"negative amount", -100, errors.InvalidAmount},
		{"one over balance", OpeningBalance + 1, errors.InsufficientFunds},
		{"far over balance", 10_000_000, errors.InsufficientFunds},
		{"exact balance succeeds", OpeningBalance, ""},
		{"partial succeeds", 200_000, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			account := openTestAccount(t, svc)

			updated, entry, err := svc.Withdraw(account, tt.amount)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errors.Code(err))
				// Caller state is untouched on failure.
				assert.Equal(t, OpeningBalance, account.Balances.Current)
				assert.Len(t, account.Transactions, 1)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, OpeningBalance-tt.amount, updated.Balances.Current)
			assert.Equal(t, domain.EntryWithdraw, entry.Kind)
			assert.Equal(t, updated.Balances.Current, entry.ResultingBalance)
			require.Len(t, updated.Transactions, 2)
			assert.Equal(t, entry.ID, updated.Transactions[0].ID)
			assert.NoError(t, ValidateLedger(updated))
		})
	}
}

func TestWithdrawLimitExceeded(t *testing.T) {
	svc, _ := newTestService(t)
	account := openTestAccount(t, svc)

	// Raise the balance above the limit so only the limit check can fire.
	account, _, err := svc.Deposit(account, 9_000_000)
	require.NoError(t, err)

	_, _, err = svc.Withdraw(account, DefaultDailyLimit+1)
	require.Error(t, err)
	assert.Equal(t, errors.LimitExceeded, errors.Code(err))

	// The limit itself is allowed.
	updated, _, err := svc.Withdraw(account, DefaultDailyLimit)
	require.NoError(t, err)
	assert.NoError(t, ValidateLedger(updated))
}

func TestWithdrawDepositRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	account := openTestAccount(t, svc)

	before := account.Balances.Current
	entriesBefore := len(account.Transactions)

	account, _, err := svc.Withdraw(account, 300_000)
	require.NoError(t, err)
	account, _, err = svc.Deposit(account, 300_000)
	require.NoError(t, err)

	// Balance round-trips, the log does not.
	assert.Equal(t, before, account.Balances.Current)
	assert.Len(t, account.Transactions, entriesBefore+2)
	assert.NoError(t, ValidateLedger(account))
}

func TestScenario(t *testing.T) {
	svc, memStore := newTestService(t)

	account := openTestAccount(t, svc)
	assert.Equal(t, int64(1_000_000), account.Balances.Current)
	require.Len(t, account.Transactions, 1)
	assert.Equal(t, int64(1_000_000), account.Transactions[0].ResultingBalance)

	account, entry, err := svc.Withdraw(account, 200_000)
	require.NoError(t, err)
	assert.Equal(t, int64(800_000), account.Balances.Current)
	assert.Len(t, account.Transactions, 2)
	assert.Equal(t, int64(800_000), entry.ResultingBalance)

	_, _, err = svc.Withdraw(account, 10_000_000)
	require.Error(t, err)
	assert.Equal(t, errors.InsufficientFunds, errors.Code(err))
	assert.Equal(t, int64(800_000), account.Balances.Current)
	assert.Len(t, account.Transactions, 2)

	// The stored record did not change either.
	stored, err := memStore.GetAccount(account.CardNumber)
	require.NoError(t, err)
	assert.Equal(t, int64(800_000), stored.Balances.Current)
	assert.Len(t, stored.Transactions, 2)

	account, _, err = svc.Deposit(account, 50_000)
	require.NoError(t, err)
	assert.Equal(t, int64(850_000), account.Balances.Current)
	assert.Len(t, account.Transactions, 3)
	assert.NoError(t, ValidateLedger(account))
}

func TestTransferDoubleEntry(t *testing.T) {
	svc, memStore := newTestService(t)
	sender := openTestAccount(t, svc)

	receiver, err := svc.OpenAccount(OpenAccountRequest{
		OwnerName: "Receiver",
		Email:     "receiver@example.com",
		Phone:     "09120000001",
		PIN:       "5678",
	})
	require.NoError(t, err)

	updated, entry, err := svc.Transfer(sender, receiver.CardNumber, 250_000, "rent")
	require.NoError(t, err)

	assert.Equal(t, OpeningBalance-250_000, updated.Balances.Current)
	assert.Equal(t, domain.EntryTransfer, entry.Kind)
	assert.Contains(t, entry.Description, receiver.CardNumber)
	assert.Contains(t, entry.Description, "rent")
	assert.NoError(t, ValidateLedger(updated))

	// The destination was credited with its own mirrored entry.
	credited, err := memStore.GetAccount(receiver.CardNumber)
	require.NoError(t, err)
	assert.Equal(t, OpeningBalance+250_000, credited.Balances.Current)
	require.Len(t, credited.Transactions, 2)
	assert.Equal(t, domain.EntryDeposit, credited.Transactions[0].Kind)
	assert.Contains(t, credited.Transactions[0].Description, sender.CardNumber)
	assert.NoError(t, ValidateLedger(credited))
}

func TestTransferUnknownDestination(t *testing.T) {
	svc, memStore := newTestService(t)
	sender := openTestAccount(t, svc)

	_, _, err := svc.Transfer(sender, "0000-0000-0000-0000", 100_000, "")
	require.Error(t, err)
	assert.Equal(t, errors.AccountNotFound, errors.Code(err))

	// Nothing was debited.
	stored, err := memStore.GetAccount(sender.CardNumber)
	require.NoError(t, err)
	assert.Equal(t, OpeningBalance, stored.Balances.Current)
	assert.Len(t, stored.Transactions, 1)
}

func TestTransferValidation(t *testing.T) {
	svc, _ := newTestService(t)
	sender := openTestAccount(t, svc)

	_, _, err := svc.Transfer(sender, sender.CardNumber, 100, "")
	assert.Equal(t, errors.InvalidInput, errors.Code(err))

	_, _, err = svc.Transfer(sender, "1111-2222-3333-4444", 0, "")
	assert.Equal(t, errors.InvalidAmount, errors.Code(err))

	_, _, err = svc.Transfer(sender, "1111-2222-3333-4444", OpeningBalance+1, "")
	assert.Equal(t, errors.InsufficientFunds, errors.Code(err))
}

func TestPayBill(t *testing.T) {
	svc, _ := newTestService(t)
	account := openTestAccount(t, svc)

	updated, entry, err := svc.PayBill(account, domain.BillElectricity, "98765", 120_000)
	require.NoError(t, err)
	assert.Equal(t, OpeningBalance-120_000, updated.Balances.Current)
	assert.Equal(t, domain.EntryBill, entry.Kind)
	assert.Contains(t, entry.Description, "electricity")
	assert.Contains(t, entry.Description, "98765")
	assert.NoError(t, ValidateLedger(updated))

	_, _, err = svc.PayBill(account, "cable", "98765", 100)
	assert.Equal(t, errors.InvalidInput, errors.Code(err))

	_, _, err = svc.PayBill(account, domain.BillWater, "", 100)
	assert.Equal(t, errors.InvalidInput, errors.Code(err))

	_, _, err = svc.PayBill(account, domain.BillGas, "1", 0)
	assert.Equal(t, errors.InvalidAmount, errors.Code(err))

	_, _, err = svc.PayBill(account, domain.BillPhone, "1", OpeningBalance*10)
	assert.Equal(t, errors.InsufficientFunds, errors.Code(err))
}

func TestComputeTotalBalance(t *testing.T) {
	svc, _ := newTestService(t)

	seeded, err := svc.EnsureDemoAccount()
	require.NoError(t, err)
	assert.True(t, seeded)

	account, err := svc.Authenticate(DemoCardNumber, DemoPIN)
	require.NoError(t, err)
	assert.Equal(t, int64(8_000_000), svc.ComputeTotalBalance(account))

	// Seeding again is a no-op.
	seeded, err = svc.EnsureDemoAccount()
	require.NoError(t, err)
	assert.False(t, seeded)
}

func TestStatement(t *testing.T) {
	svc, _ := newTestService(t)
	account := openTestAccount(t, svc)

	for i := 0; i < 4; i++ {
		var err error
		account, _, err = svc.Deposit(account, 1_000)
		require.NoError(t, err)
	}

	all := svc.Statement(account, 0)
	assert.Len(t, all, 5)

	page := svc.Statement(account, 3)
	require.Len(t, page, 3)
	// Newest first.
	assert.Equal(t, account.Transactions[0].ID, page[0].ID)
}

func TestStaleWriteRejected(t *testing.T) {
	svc, memStore := newTestService(t)
	account := openTestAccount(t, svc)

	copy1, err := memStore.GetAccount(account.CardNumber)
	require.NoError(t, err)
	copy2, err := memStore.GetAccount(account.CardNumber)
	require.NoError(t, err)

	_, _, err = svc.Withdraw(copy1, 100_000)
	require.NoError(t, err)

	_, _, err = svc.Withdraw(copy2, 100_000)
	require.Error(t, err)
	assert.Equal(t, errors.ConcurrentModification, errors.Code(err))
}

func TestConcurrentWithdrawals(t *testing.T) {
	svc, memStore := newTestService(t)
	account := openTestAccount(t, svc)

	// Both individually fit the balance, together they overdraw it.
	copies := make([]*domain.Account, 2)
	for i := range copies {
		cp, err := memStore.GetAccount(account.CardNumber)
		require.NoError(t, err)
		copies[i] = cp
	}

	results := make([]error, len(copies))
	var g errgroup.Group
	for i, cp := range copies {
		g.Go(func() error {
			_, _, err := svc.Withdraw(cp, 700_000)
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		code := errors.Code(err)
		assert.Contains(t, []errors.ErrorCode{
			errors.ConcurrentModification,
			errors.InsufficientFunds,
		}, code)
	}
	assert.LessOrEqual(t, successes, 1)

	stored, err := memStore.GetAccount(account.CardNumber)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stored.Balances.Current, int64(0))
	assert.NoError(t, ValidateLedger(stored))
}

func TestValidateLedgerDetectsCorruption(t *testing.T) {
	svc, _ := newTestService(t)
	account := openTestAccount(t, svc)

	account, _, err := svc.Withdraw(account, 100_000)
	require.NoError(t, err)
	require.NoError(t, ValidateLedger(account))

	account.Transactions[0].ResultingBalance += 1
	assert.Error(t, ValidateLedger(account))
}
