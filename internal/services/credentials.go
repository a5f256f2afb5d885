package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kodbank/backend/internal/logger"
	"github.com/kodbank/backend/internal/models"
	"github.com/kodbank/backend/internal/password"
	"github.com/kodbank/backend/internal/store"
	"github.com/kodbank/backend/internal/token"
)

// AuthResult is returned by a successful register or login.
type AuthResult struct {
	Account   models.AccountView
	Token     string
	ExpiresAt time.Time
}

// CredentialService registers accounts, checks passwords and issues sessions.
type CredentialService struct {
	users          store.UserStore
	sessions       store.TokenStore
	hasher         *password.Hasher
	tokens         *token.Manager
	initialBalance int64
	log            *zap.Logger
}

func NewCredentialService(users store.UserStore, sessions store.TokenStore, hasher *password.Hasher,
	tokens *token.Manager, initialBalance int64, log *zap.Logger) *CredentialService {
	return &CredentialService{
		users:          users,
		sessions:       sessions,
		hasher:         hasher,
		tokens:         tokens,
		initialBalance: initialBalance,
		log:            log.Named("auth"),
	}
}

func (s *CredentialService) Register(ctx context.Context, name, email, plain string) (AuthResult, error) {
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	account := &models.Account{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Balance:      s.initialBalance,
	}

	// A failed session save must not leave an account behind.
	session, err := s.saveSession(ctx, account)
	if err != nil {
		return AuthResult{}, err
	}

	if err := s.users.Create(ctx, account); err != nil {
		s.discardSession(ctx, session.Token)
		if errors.Is(err, store.ErrAlreadyExists) {
			s.log.Info("registration rejected, email taken", zap.String("email", email))
			return AuthResult{}, ErrDuplicateAccount
		}
		return AuthResult{}, unavailable("create account", err)
	}

	result := s.finishSession(ctx, account, session)
	s.log.Info("account registered", zap.String("account_id", account.ID))
	return result, nil
}

// Login never tells the caller whether the email exists: an unknown email
// and a wrong password both end in ErrInvalidCredentials after a full hash
// verification.
func (s *CredentialService) Login(ctx context.Context, email, plain string) (AuthResult, error) {
	account, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		s.hasher.VerifyDummy(plain)
		s.log.Info("login failed", zap.String("reason", "unknown email"))
		return AuthResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return AuthResult{}, unavailable("load account", err)
	}

	ok, err := s.hasher.Verify(plain, account.PasswordHash)
	if err != nil {
		s.log.Error("stored password hash unusable", zap.String("account_id", account.ID), zap.Error(err))
		return AuthResult{}, ErrInvalidCredentials
	}
	if !ok {
		s.log.Info("login failed", zap.String("reason", "bad password"), zap.String("account_id", account.ID))
		return AuthResult{}, ErrInvalidCredentials
	}

	session, err := s.saveSession(ctx, account)
	if err != nil {
		return AuthResult{}, err
	}
	result := s.finishSession(ctx, account, session)

	s.log.Info("login succeeded", zap.String("account_id", account.ID))
	return result, nil
}

// Logout revokes the session. Unknown, empty and already revoked tokens are
// not errors.
func (s *CredentialService) Logout(ctx context.Context, bearer string) error {
	if bearer == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, bearer); err != nil {
		return unavailable("revoke session", err)
	}
	return nil
}

// Profile returns the public view of an account.
func (s *CredentialService) Profile(ctx context.Context, accountID string) (models.AccountView, error) {
	account, err := s.users.GetByID(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return models.AccountView{}, ErrAccountNotFound
	}
	if err != nil {
		return models.AccountView{}, unavailable("load account", err)
	}
	return account.View(), nil
}

func (s *CredentialService) saveSession(ctx context.Context, account *models.Account) (models.Session, error) {
	issued, err := s.tokens.Issue(account.ID, account.Name, account.Email)
	if err != nil {
		return models.Session{}, err
	}

	session := models.Session{
		Token:     issued.Token,
		AccountID: account.ID,
		IssuedAt:  issued.IssuedAt,
		ExpiresAt: issued.ExpiresAt,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return models.Session{}, unavailable("save session", err)
	}
	return session, nil
}

// discardSession removes a session that was never handed to the caller.
func (s *CredentialService) discardSession(ctx context.Context, bearer string) {
	if err := s.sessions.Delete(context.WithoutCancel(ctx), bearer); err != nil {
		s.log.Warn("could not discard unused session", zap.String("token", logger.Redact(bearer)), zap.Error(err))
	}
}

func (s *CredentialService) finishSession(ctx context.Context, account *models.Account, session models.Session) AuthResult {
	// CurrentToken is informational; the token store decides validity.
	if err := s.users.SetCurrentToken(ctx, account.ID, session.Token); err != nil {
		s.log.Warn("could not record current token", zap.String("account_id", account.ID), zap.Error(err))
	}

	view := account.View()
	view.ID = ""
	return AuthResult{Account: view, Token: session.Token, ExpiresAt: session.ExpiresAt}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
