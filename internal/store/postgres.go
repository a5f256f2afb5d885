package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/kodbank/backend/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	balance       BIGINT NOT NULL CHECK (balance >= 0),
	current_token TEXT NOT NULL DEFAULT '',
	version       BIGINT NOT NULL DEFAULT 1,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
)

// PostgresUserStore persists accounts in PostgreSQL. It works with either the
// lib/pq or the pgx database/sql driver.
type PostgresUserStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db, now: time.Now}
}

// Migrate creates the accounts table if it does not exist.
func (s *PostgresUserStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *PostgresUserStore) Create(ctx context.Context, account *models.Account) error {
	now := s.now()
	if account.Version == 0 {
		account.Version = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, email, password_hash, balance, current_token, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		account.ID, account.Name, account.Email, account.PasswordHash,
		account.Balance, account.CurrentToken, account.Version, now)
	if err != nil {
		if sqlState(err) == codeUniqueViolation {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	account.CreatedAt, account.UpdatedAt = now, now
	return nil
}

const selectAccount = `
	SELECT id, name, email, password_hash, balance, current_token, version, created_at, updated_at
	FROM accounts`

func (s *PostgresUserStore) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, selectAccount+` WHERE id = $1`, id))
}

func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, selectAccount+` WHERE email = $1`, email))
}

func (s *PostgresUserStore) scanOne(row *sql.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Balance,
		&a.CurrentToken, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select account: %w", err)
	}
	return &a, nil
}

func (s *PostgresUserStore) SetCurrentToken(ctx context.Context, id, token string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET current_token = $1 WHERE id = $2`, token, id)
	if err != nil {
		return fmt.Errorf("update current token: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyBalanceChanges runs every change in one transaction, in account id
// order, each guarded by the expected version.
func (s *PostgresUserStore) ApplyBalanceChanges(ctx context.Context, changes []models.BalanceChange) error {
	ordered := make([]models.BalanceChange, len(changes))
	copy(ordered, changes)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].AccountID < ordered[j].AccountID })

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	for _, c := range ordered {
		result, err := tx.ExecContext(ctx,
			`UPDATE accounts SET balance = balance + $1, version = version + 1, updated_at = $2 WHERE id = $3 AND version = $4`,
			c.Delta, now, c.AccountID, c.ExpectedVersion)
		if err != nil {
			if sqlState(err) == codeCheckViolation {
				return ErrNegativeBalance
			}
			return fmt.Errorf("update balance: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrVersionConflict
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// sqlState extracts the SQLSTATE code from either driver's error type.
func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
