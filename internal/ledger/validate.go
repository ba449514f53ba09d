package ledger

import (
	"github.com/mjfrontdev/atm-simulation/internal/domain"
	"github.com/mjfrontdev/atm-simulation/internal/errors"
)

// ValidateLedger replays the account's transaction log from oldest to newest
// and checks that summing the signed amounts reproduces every entry's
// resulting-balance snapshot, and that the final value matches the account's
// current balance. The log includes the opening deposit, so replay starts
// from zero.
func ValidateLedger(account *domain.Account) error {
	var balance int64
	for i := len(account.Transactions) - 1; i >= 0; i-- {
		entry := account.Transactions[i]
		balance += entry.Signed()
		if balance < 0 {
			return errors.NewAppErrorf(errors.InternalError,
				"ledger replay went negative at entry %s", entry.ID)
		}
		if balance != entry.ResultingBalance {
			return errors.NewAppErrorf(errors.InternalError,
				"entry %s records balance %d, replay yields %d",
				entry.ID, entry.ResultingBalance, balance)
		}
	}
	if balance != account.Balances.Current {
		return errors.NewAppErrorf(errors.InternalError,
			"replayed balance %d does not match current balance %d",
			balance, account.Balances.Current)
	}
	return nil
}
