package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager("test-secret", "kodbank", time.Hour)
	require.NoError(t, err)
	return m
}

func TestManager_IssueAndVerify(t *testing.T) {
	m := newTestManager(t)

	issued, err := m.Issue("acc-1", "Alice", "alice@x.com")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Token)
	assert.Equal(t, time.Hour, issued.ExpiresAt.Sub(issued.IssuedAt))

	claims, err := m.Verify(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.Subject)
	assert.Equal(t, "Alice", claims.Name)
	assert.Equal(t, "alice@x.com", claims.Email)
	assert.NotEmpty(t, claims.ID)
}

func TestManager_IssueIsUnique(t *testing.T) {
	m := newTestManager(t)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		issued, err := m.Issue("acc-1", "Alice", "alice@x.com")
		require.NoError(t, err)
		assert.False(t, seen[issued.Token])
		seen[issued.Token] = true
	}
}

func TestManager_Verify(t *testing.T) {
	m := newTestManager(t)

	t.Run("expired", func(t *testing.T) {
		past := m.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
		issued, err := past.Issue("acc-1", "Alice", "alice@x.com")
		require.NoError(t, err)

		_, err = m.Verify(issued.Token)
		assert.ErrorIs(t, err, ErrExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewManager("other-secret", "kodbank", time.Hour)
		require.NoError(t, err)
		issued, err := other.Issue("acc-1", "Alice", "alice@x.com")
		require.NoError(t, err)

		_, err = m.Verify(issued.Token)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := NewManager("test-secret", "someone-else", time.Hour)
		require.NoError(t, err)
		issued, err := other.Issue("acc-1", "Alice", "alice@x.com")
		require.NoError(t, err)

		_, err = m.Verify(issued.Token)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Verify("not-a-jwt")
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("unsigned", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"sub": "acc-1",
			"iss": "kodbank",
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = m.Verify(unsigned)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("no expiry", func(t *testing.T) {
		noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "acc-1",
			"iss": "kodbank",
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = m.Verify(noExp)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("no subject", func(t *testing.T) {
		noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"iss": "kodbank",
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = m.Verify(noSub)
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager("", "kodbank", time.Hour)
	assert.Error(t, err)

	_, err = NewManager("secret", "kodbank", 0)
	assert.Error(t, err)
}
