package store

import (
	"database/sql"
	"encoding/json"
	goerrors "errors"
	"log/slog"

	sqlite "modernc.org/sqlite"

	"github.com/mjfrontdev/atm-simulation/internal/domain"
	"github.com/mjfrontdev/atm-simulation/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	card_number TEXT PRIMARY KEY,
	version     INTEGER NOT NULL,
	payload     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS session (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	card_number TEXT NOT NULL
);
`

// SQLiteStore persists account records in a local SQLite file. Records are
// stored as JSON values keyed by card number, with the version kept in its
// own column so optimistic writes can be checked in SQL.
type SQLiteStore struct {
	db       *sql.DB
	executor SQLExecutor
	logger   *slog.Logger
}

// OpenSQLite opens (and if needed initializes) the store at path.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewAppError(errors.StoreUnavailable, "failed to open store").WithDetails(err.Error())
	}

	// SQLite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY errors under concurrent use.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.NewAppError(errors.StoreUnavailable, "failed to initialize store").WithDetails(err.Error())
	}

	logger.Info("store opened", "path", path)

	return &SQLiteStore{
		db:       db,
		executor: db,
		logger:   logger,
	}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateAccount(account *domain.Account) error {
	account.Version = 1

	payload, err := json.Marshal(account)
	if err != nil {
		return errors.NewAppError(errors.InternalError, "failed to encode account").WithDetails(err.Error())
	}

	_, err = s.executor.Exec(
		`INSERT INTO accounts (card_number, version, payload) VALUES (?, ?, ?)`,
		account.CardNumber,
		account.Version,
		string(payload),
	)

	if err != nil {
		var sqliteErr *sqlite.Error
		if goerrors.As(err, &sqliteErr) && sqliteErr.Code() == 2067 { // SQLITE_CONSTRAINT_UNIQUE
			s.logger.Warn("duplicate account creation attempt", "card_number", account.CardNumber)
			return errors.ErrDuplicateAccount
		}
		s.logger.Error("failed to create account", "card_number", account.CardNumber, "error", err)
		return errors.NewAppError(errors.StoreUnavailable, "failed to create account").WithDetails(err.Error())
	}

	s.logger.Info("account created", "card_number", account.CardNumber)
	return nil
}

func (s *SQLiteStore) GetAccount(cardNumber string) (*domain.Account, error) {
	var payload string
	var version int64

	err := s.executor.QueryRow(
		`SELECT version, payload FROM accounts WHERE card_number = ?`,
		cardNumber,
	).Scan(&version, &payload)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrAccountNotFound
		}
		s.logger.Error("failed to get account", "card_number", cardNumber, "error", err)
		return nil, errors.NewAppError(errors.StoreUnavailable, "failed to get account").WithDetails(err.Error())
	}

	var account domain.Account
	if err := json.Unmarshal([]byte(payload), &account); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to decode account").WithDetails(err.Error())
	}
	account.Version = version

	return &account, nil
}

func (s *SQLiteStore) UpdateAccount(account *domain.Account) error {
	expected := account.Version
	next := expected + 1

	account.Version = next
	payload, err := json.Marshal(account)
	if err != nil {
		account.Version = expected
		return errors.NewAppError(errors.InternalError, "failed to encode account").WithDetails(err.Error())
	}

	result, err := s.executor.Exec(
		`UPDATE accounts SET version = ?, payload = ? WHERE card_number = ? AND version = ?`,
		next,
		string(payload),
		account.CardNumber,
		expected,
	)
	if err != nil {
		account.Version = expected
		s.logger.Error("failed to update account", "card_number", account.CardNumber, "error", err)
		return errors.NewAppError(errors.StoreUnavailable, "failed to update account").WithDetails(err.Error())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		account.Version = expected
		return errors.NewAppError(errors.StoreUnavailable, "failed to get rows affected").WithDetails(err.Error())
	}

	if rowsAffected == 0 {
		account.Version = expected

		// Either the record is gone or someone else wrote it first.
		var exists int
		err := s.executor.QueryRow(
			`SELECT 1 FROM accounts WHERE card_number = ?`, account.CardNumber,
		).Scan(&exists)
		if err == sql.ErrNoRows {
			return errors.ErrAccountNotFound
		}
		s.logger.Warn("stale account write rejected", "card_number", account.CardNumber, "expected_version", expected)
		return errors.ErrConcurrentModification
	}

	return nil
}

func (s *SQLiteStore) ListAccounts() ([]*domain.Account, error) {
	rows, err := s.executor.Query(`SELECT version, payload FROM accounts ORDER BY card_number`)
	if err != nil {
		return nil, errors.NewAppError(errors.StoreUnavailable, "failed to list accounts").WithDetails(err.Error())
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		var payload string
		var version int64
		if err := rows.Scan(&version, &payload); err != nil {
			return nil, errors.NewAppError(errors.StoreUnavailable, "failed to scan account").WithDetails(err.Error())
		}

		var account domain.Account
		if err := json.Unmarshal([]byte(payload), &account); err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to decode account").WithDetails(err.Error())
		}
		account.Version = version
		accounts = append(accounts, &account)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.StoreUnavailable, "failed to list accounts").WithDetails(err.Error())
	}

	return accounts, nil
}

// WithTransaction executes fn within a database transaction, so multi-account
// updates (transfers) apply fully or not at all.
func (s *SQLiteStore) WithTransaction(fn func(store domain.AccountStore) error) error {
	db, ok := s.executor.(*sql.DB)
	if !ok {
		// Already inside a transaction, reuse it.
		return fn(s)
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.NewAppError(errors.StoreUnavailable, "failed to begin transaction").WithDetails(err.Error())
	}

	txStore := &SQLiteStore{
		db:       s.db,
		executor: &TxWrapper{Tx: tx},
		logger:   s.logger,
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txStore); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewAppError(errors.StoreUnavailable, "failed to commit transaction").WithDetails(err.Error())
	}
	return nil
}

func (s *SQLiteStore) SetSession(cardNumber string) error {
	_, err := s.executor.Exec(
		`INSERT INTO session (id, card_number) VALUES (1, ?)
		 ON CONFLICT (id) DO UPDATE SET card_number = excluded.card_number`,
		cardNumber,
	)
	if err != nil {
		return errors.NewAppError(errors.StoreUnavailable, "failed to set session").WithDetails(err.Error())
	}
	return nil
}

func (s *SQLiteStore) GetSession() (string, error) {
	var cardNumber string
	err := s.executor.QueryRow(`SELECT card_number FROM session WHERE id = 1`).Scan(&cardNumber)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", errors.NewAppError(errors.StoreUnavailable, "failed to get session").WithDetails(err.Error())
	}
	return cardNumber, nil
}

func (s *SQLiteStore) ClearSession() error {
	_, err := s.executor.Exec(`DELETE FROM session WHERE id = 1`)
	if err != nil {
		return errors.NewAppError(errors.StoreUnavailable, "failed to clear session").WithDetails(err.Error())
	}
	return nil
}
