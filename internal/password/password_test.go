package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testParams() Params {
	return Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLength: 32, SaltLength: 16}
}

func TestHasher(t *testing.T) {
	h, err := NewHasher(testParams())
	require.NoError(t, err)

	t.Run("hash and verify", func(t *testing.T) {
		hashed, err := h.Hash("testpassword")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hashed, "$argon2id$v=19$m=8192,t=1,p=1$"))
		assert.NotContains(t, hashed, "testpassword")

		ok, err := h.Verify("testpassword", hashed)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = h.Verify("wrongpassword", hashed)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("salted", func(t *testing.T) {
		a, err := h.Hash("same")
		require.NoError(t, err)
		b, err := h.Hash("same")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("legacy bcrypt", func(t *testing.T) {
		legacy, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
		require.NoError(t, err)

		ok, err := h.Verify("secret123", string(legacy))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = h.Verify("nope", string(legacy))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, encoded := range []string{
			"",
			"plaintext",
			"$argon2id$v=19$m=8192,t=1,p=1$onlyfive",
			"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$a2V5",
			"$argon2id$v=19$m=0,t=1,p=1$c2FsdA$a2V5",
			"$argon2id$v=19$m=8192,t=1,p=1$!!!$a2V5",
		} {
			_, err := h.Verify("x", encoded)
			assert.ErrorIs(t, err, ErrMalformedHash, encoded)
		}
	})

	t.Run("dummy verification does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() { h.VerifyDummy("anything") })
	})
}

func TestNewHasher_RejectsWeakParams(t *testing.T) {
	p := testParams()
	p.Time = 0
	_, err := NewHasher(p)
	assert.Error(t, err)

	p = testParams()
	p.SaltLength = 4
	_, err = NewHasher(p)
	assert.Error(t, err)
}
