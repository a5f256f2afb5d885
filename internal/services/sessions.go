package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kodbank/backend/internal/store"
	"github.com/kodbank/backend/internal/token"
)

// Outcome is the result of inspecting a presented bearer token.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeMissing
	OutcomeMalformed
	OutcomeExpired
	OutcomeRevoked
	OutcomeUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeMissing:
		return "missing"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeExpired:
		return "expired"
	case OutcomeRevoked:
		return "revoked"
	case OutcomeUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// Identity is the authenticated caller. Name and Email are the snapshot
// embedded at issuance and may be stale.
type Identity struct {
	AccountID string
	Name      string
	Email     string
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Verdict carries an Outcome and, for OutcomeOK, the resolved Identity.
// Err holds the underlying cause when there is one.
type Verdict struct {
	Outcome  Outcome
	Identity Identity
	Err      error
}

// SessionAuthority resolves bearer tokens to identities. It checks the
// signature first and then requires the session to still be stored.
type SessionAuthority struct {
	tokens   *token.Manager
	sessions store.TokenStore
	log      *zap.Logger
}

func NewSessionAuthority(tokens *token.Manager, sessions store.TokenStore, log *zap.Logger) *SessionAuthority {
	return &SessionAuthority{tokens: tokens, sessions: sessions, log: log.Named("session")}
}

func (a *SessionAuthority) Inspect(ctx context.Context, bearer string) Verdict {
	if bearer == "" {
		return Verdict{Outcome: OutcomeMissing}
	}

	claims, err := a.tokens.Verify(bearer)
	switch {
	case errors.Is(err, token.ErrExpired):
		return Verdict{Outcome: OutcomeExpired, Err: err}
	case err != nil:
		return Verdict{Outcome: OutcomeMalformed, Err: err}
	}

	session, err := a.sessions.Get(ctx, bearer)
	if errors.Is(err, store.ErrNotFound) {
		return Verdict{Outcome: OutcomeRevoked}
	}
	if err != nil {
		return Verdict{Outcome: OutcomeUnavailable, Err: err}
	}
	if session.AccountID != claims.Subject {
		return Verdict{Outcome: OutcomeRevoked}
	}

	return Verdict{
		Outcome: OutcomeOK,
		Identity: Identity{
			AccountID: claims.Subject,
			Name:      claims.Name,
			Email:     claims.Email,
			Token:     bearer,
			IssuedAt:  session.IssuedAt,
			ExpiresAt: session.ExpiresAt,
		},
	}
}

func (a *SessionAuthority) Authenticate(ctx context.Context, bearer string) (Identity, error) {
	v := a.Inspect(ctx, bearer)
	switch v.Outcome {
	case OutcomeOK:
		return v.Identity, nil
	case OutcomeMissing:
		return Identity{}, ErrNoToken
	case OutcomeMalformed, OutcomeExpired:
		a.log.Debug("token rejected", zap.Stringer("outcome", v.Outcome), zap.Error(v.Err))
		return Identity{}, ErrInvalidToken
	case OutcomeRevoked:
		return Identity{}, ErrRevokedSession
	default:
		a.log.Error("session lookup failed", zap.Error(v.Err))
		return Identity{}, unavailable("load session", v.Err)
	}
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by WithIdentity.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.AccountID != ""
}
