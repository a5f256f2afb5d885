package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kodbank/backend/internal/lock"
	"github.com/kodbank/backend/internal/models"
	"github.com/kodbank/backend/internal/password"
	"github.com/kodbank/backend/internal/store"
	"github.com/kodbank/backend/internal/token"
)

const initialBalance = int64(100000)

var testParams = password.Params{Time: 1, Memory: 1024, Threads: 1, KeyLength: 32, SaltLength: 16}

type testEnv struct {
	users    *store.MemoryUserStore
	sessions *store.MemoryTokenStore
	tokens   *token.Manager
	hasher   *password.Hasher
	creds    *CredentialService
	auth     *SessionAuthority
	ledger   *LedgerEngine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hasher, err := password.NewHasher(testParams)
	require.NoError(t, err)
	tokens, err := token.NewManager("test-secret", "kodbank", time.Hour)
	require.NoError(t, err)

	env := &testEnv{
		users:    store.NewMemoryUserStore(),
		sessions: store.NewMemoryTokenStore(),
		tokens:   tokens,
		hasher:   hasher,
	}
	log := zap.NewNop()
	env.creds = NewCredentialService(env.users, env.sessions, hasher, tokens, initialBalance, log)
	env.auth = NewSessionAuthority(tokens, env.sessions, log)
	env.ledger = NewLedgerEngine(env.users, lock.NewAccountLocker(2*time.Second), 3, log)
	return env
}

// register creates an account and returns its id and token.
func (env *testEnv) register(t *testing.T, name, email string) (string, string) {
	t.Helper()
	res, err := env.creds.Register(context.Background(), name, email, "secret123")
	require.NoError(t, err)
	account, err := env.users.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return account.ID, res.Token
}

func (env *testEnv) balance(t *testing.T, id string) int64 {
	t.Helper()
	b, err := env.ledger.Balance(context.Background(), id)
	require.NoError(t, err)
	return b
}

type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) Save(ctx context.Context, session models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockTokenStore) Get(ctx context.Context, bearer string) (models.Session, error) {
	args := m.Called(ctx, bearer)
	return args.Get(0).(models.Session), args.Error(1)
}

func (m *MockTokenStore) Delete(ctx context.Context, bearer string) error {
	args := m.Called(ctx, bearer)
	return args.Error(0)
}

// flakyUserStore fails the first n commits with err before delegating.
type flakyUserStore struct {
	*store.MemoryUserStore
	failures int
	err      error
	commits  int
}

func (f *flakyUserStore) ApplyBalanceChanges(ctx context.Context, changes []models.BalanceChange) error {
	f.commits++
	if f.failures > 0 {
		f.failures--
		return f.err
	}
	return f.MemoryUserStore.ApplyBalanceChanges(ctx, changes)
}
