package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kodbank/backend/internal/models"
	"github.com/kodbank/backend/internal/store"
)

const bcryptHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

func TestImport(t *testing.T) {
	ctx := context.Background()
	users := store.NewMemoryUserStore()
	require.NoError(t, users.Create(ctx, &models.Account{ID: "existing", Email: "bob@x.com", PasswordHash: "h"}))

	file := `[
		{"id": 1718000000001, "name": "Alice", "email": "alice@x.com", "password": "` + bcryptHash + `", "balance": 700, "userToken": "x"},
		{"id": 1718000000002, "name": "Bob", "email": "bob@x.com", "password": "` + bcryptHash + `", "balance": 1300},
		{"id": 1718000000003, "name": "Carol", "email": "carol@x.com", "password": "` + bcryptHash + `", "balance": 12.5},
		{"id": 1718000000004, "name": "Dave", "email": "dave@x.com", "password": "plain", "balance": 10},
		{"id": 1718000000005, "name": "Erin", "email": "erin@x.com", "password": "` + bcryptHash + `", "balance": 0.001},
		{"id": 1718000000006, "name": "Frank", "email": "frank@x.com", "password": "` + bcryptHash + `", "balance": -3},
		{"id": 1718000000007, "name": "Grace", "email": "grace@x.com", "password": "` + bcryptHash + `", "balance": 1e60000000},
		{"id": 1718000000008, "name": "Heidi", "email": "heidi@x.com", "password": "` + bcryptHash + `", "balance": 1e-60000000}
	]`

	rep, err := Import(ctx, strings.NewReader(file), users, 2, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, Report{Imported: 2, Skipped: 1, Failed: 5}, rep)

	alice, err := users.GetByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, "1718000000001", alice.ID)
	assert.Equal(t, int64(70000), alice.Balance)
	assert.Equal(t, bcryptHash, alice.PasswordHash)

	carol, err := users.GetByEmail(ctx, "carol@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1250), carol.Balance)

	bob, err := users.GetByEmail(ctx, "bob@x.com")
	require.NoError(t, err)
	assert.Equal(t, "existing", bob.ID)
}

func TestImport_BadFile(t *testing.T) {
	_, err := Import(context.Background(), strings.NewReader(`{"not":"an array"}`), store.NewMemoryUserStore(), 2, zap.NewNop())
	assert.Error(t, err)
}
