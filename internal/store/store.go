// Package store defines the persistence contracts consumed by the services
// and their in-memory, PostgreSQL and Redis adapters.
package store

import (
	"context"
	"errors"

	"github.com/kodbank/backend/internal/models"
)

var (
	// ErrNotFound indicates a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness conflict.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrVersionConflict indicates an account changed since it was read.
	ErrVersionConflict = errors.New("account version conflict")
	// ErrNegativeBalance indicates a change would drive a balance below zero.
	ErrNegativeBalance = errors.New("balance would become negative")
)

// UserStore persists accounts.
type UserStore interface {
	// Create inserts a new account. Email uniqueness is enforced atomically.
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	// GetByEmail is an exact, case-sensitive match.
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	SetCurrentToken(ctx context.Context, id, token string) error
	// ApplyBalanceChanges applies every change or none. Each change is
	// guarded by its ExpectedVersion and bumps the account version.
	ApplyBalanceChanges(ctx context.Context, changes []models.BalanceChange) error
}

// TokenStore persists issued sessions keyed by bearer value.
type TokenStore interface {
	// Save stores a session. A bearer value that is already stored is
	// rejected with ErrAlreadyExists.
	Save(ctx context.Context, session models.Session) error
	// Get returns ErrNotFound for unknown or expired sessions.
	Get(ctx context.Context, token string) (models.Session, error)
	// Delete is idempotent.
	Delete(ctx context.Context, token string) error
}
