package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kodbank/backend/internal/models"
	"github.com/kodbank/backend/internal/store"
)

func TestCredentialService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("creates account with initial balance and a live session", func(t *testing.T) {
		env := newTestEnv(t)

		res, err := env.creds.Register(ctx, "Alice", "alice@x.com", "secret123")
		require.NoError(t, err)
		assert.Equal(t, "Alice", res.Account.Name)
		assert.Equal(t, "alice@x.com", res.Account.Email)
		assert.Empty(t, res.Account.ID)
		assert.NotEmpty(t, res.Token)

		stored, err := env.users.GetByEmail(ctx, "alice@x.com")
		require.NoError(t, err)
		assert.Equal(t, initialBalance, stored.Balance)
		assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"))
		assert.NotContains(t, stored.PasswordHash, "secret123")
		assert.Equal(t, res.Token, stored.CurrentToken)

		id, err := env.auth.Authenticate(ctx, res.Token)
		require.NoError(t, err)
		assert.Equal(t, stored.ID, id.AccountID)
	})

	t.Run("duplicate email", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "Alice", "alice@x.com")

		_, err := env.creds.Register(ctx, "Impostor", "alice@x.com", "other-pass")
		assert.ErrorIs(t, err, ErrDuplicateAccount)
		assert.Equal(t, KindConflict, KindOf(err))
	})

	t.Run("email match is exact", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "Alice", "alice@x.com")

		_, err := env.creds.Register(ctx, "Alice", "Alice@x.com", "secret123")
		assert.NoError(t, err)
	})

	t.Run("session store down", func(t *testing.T) {
		env := newTestEnv(t)
		sessions := new(MockTokenStore)
		sessions.On("Save", mock.Anything, mock.AnythingOfType("models.Session")).Return(errors.New("connection refused"))
		creds := NewCredentialService(env.users, sessions, env.hasher, env.tokens, initialBalance, zap.NewNop())

		_, err := creds.Register(ctx, "Alice", "alice@x.com", "secret123")
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.Equal(t, KindUnavailable, KindOf(err))
		sessions.AssertExpectations(t)

		_, err = env.users.GetByEmail(ctx, "alice@x.com")
		assert.ErrorIs(t, err, store.ErrNotFound)

		_, err = env.creds.Register(ctx, "Alice", "alice@x.com", "secret123")
		assert.NoError(t, err)
	})

	t.Run("rejected registration discards its session", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "Alice", "alice@x.com")

		var saved models.Session
		sessions := new(MockTokenStore)
		sessions.On("Save", mock.Anything, mock.AnythingOfType("models.Session")).
			Run(func(args mock.Arguments) { saved = args.Get(1).(models.Session) }).
			Return(nil)
		sessions.On("Delete", mock.Anything, mock.AnythingOfType("string")).Return(nil)
		creds := NewCredentialService(env.users, sessions, env.hasher, env.tokens, initialBalance, zap.NewNop())

		_, err := creds.Register(ctx, "Impostor", "alice@x.com", "other-pass")
		assert.ErrorIs(t, err, ErrDuplicateAccount)
		sessions.AssertCalled(t, "Delete", mock.Anything, saved.Token)
	})
}

func TestCredentialService_Login(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	aliceID, _ := env.register(t, "Alice", "alice@x.com")

	t.Run("success issues a new token", func(t *testing.T) {
		res, err := env.creds.Login(ctx, "alice@x.com", "secret123")
		require.NoError(t, err)
		assert.Equal(t, "alice@x.com", res.Account.Email)

		id, err := env.auth.Authenticate(ctx, res.Token)
		require.NoError(t, err)
		assert.Equal(t, aliceID, id.AccountID)
		assert.Equal(t, "Alice", id.Name)
	})

	t.Run("earlier sessions stay valid", func(t *testing.T) {
		first, err := env.creds.Login(ctx, "alice@x.com", "secret123")
		require.NoError(t, err)
		second, err := env.creds.Login(ctx, "alice@x.com", "secret123")
		require.NoError(t, err)
		assert.NotEqual(t, first.Token, second.Token)

		_, err = env.auth.Authenticate(ctx, first.Token)
		assert.NoError(t, err)
		_, err = env.auth.Authenticate(ctx, second.Token)
		assert.NoError(t, err)
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		_, wrongPass := env.creds.Login(ctx, "alice@x.com", "not-it")
		_, unknown := env.creds.Login(ctx, "nobody@x.com", "secret123")

		require.Error(t, wrongPass)
		require.Error(t, unknown)
		assert.ErrorIs(t, wrongPass, ErrInvalidCredentials)
		assert.ErrorIs(t, unknown, ErrInvalidCredentials)
		assert.Equal(t, wrongPass.Error(), unknown.Error())
		assert.Equal(t, KindOf(wrongPass), KindOf(unknown))
	})

	t.Run("legacy bcrypt hash", func(t *testing.T) {
		hash, err := bcrypt.GenerateFromPassword([]byte("legacy-pass"), bcrypt.MinCost)
		require.NoError(t, err)
		require.NoError(t, env.users.Create(ctx, &models.Account{
			ID: "legacy", Name: "Old", Email: "old@x.com", PasswordHash: string(hash), Balance: 5000,
		}))

		_, err = env.creds.Login(ctx, "old@x.com", "legacy-pass")
		assert.NoError(t, err)
		_, err = env.creds.Login(ctx, "old@x.com", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("corrupt stored hash", func(t *testing.T) {
		require.NoError(t, env.users.Create(ctx, &models.Account{
			ID: "broken", Name: "Broken", Email: "broken@x.com", PasswordHash: "plaintext",
		}))

		_, err := env.creds.Login(ctx, "broken@x.com", "plaintext")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestCredentialService_Logout(t *testing.T) {
	ctx := context.Background()

	t.Run("double logout then the token is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		_, tok := env.register(t, "Alice", "alice@x.com")

		require.NoError(t, env.creds.Logout(ctx, tok))
		require.NoError(t, env.creds.Logout(ctx, tok))

		_, err := env.auth.Authenticate(ctx, tok)
		assert.ErrorIs(t, err, ErrRevokedSession)
		assert.Equal(t, KindAuthentication, KindOf(err))
	})

	t.Run("unknown and empty tokens", func(t *testing.T) {
		env := newTestEnv(t)
		assert.NoError(t, env.creds.Logout(ctx, ""))
		assert.NoError(t, env.creds.Logout(ctx, "never-issued"))
	})

	t.Run("other sessions survive", func(t *testing.T) {
		env := newTestEnv(t)
		_, first := env.register(t, "Alice", "alice@x.com")
		second, err := env.creds.Login(ctx, "alice@x.com", "secret123")
		require.NoError(t, err)

		require.NoError(t, env.creds.Logout(ctx, first))
		_, err = env.auth.Authenticate(ctx, second.Token)
		assert.NoError(t, err)
	})

	t.Run("store failure", func(t *testing.T) {
		env := newTestEnv(t)
		sessions := new(MockTokenStore)
		sessions.On("Delete", mock.Anything, "tok").Return(errors.New("timeout"))
		creds := NewCredentialService(env.users, sessions, env.hasher, env.tokens, initialBalance, zap.NewNop())

		err := creds.Logout(ctx, "tok")
		assert.ErrorIs(t, err, ErrUnavailable)
		sessions.AssertExpectations(t)
	})
}

func TestCredentialService_Profile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id, _ := env.register(t, "Alice", "alice@x.com")

	view, err := env.creds.Profile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, view.ID)
	assert.Equal(t, "Alice", view.Name)

	_, err = env.creds.Profile(ctx, "deleted")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
