package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kodbank/backend/internal/handlers"
	"github.com/kodbank/backend/internal/models"
	"github.com/kodbank/backend/internal/services"
	"github.com/kodbank/backend/internal/store"
	"github.com/kodbank/backend/internal/token"
)

func TestAuthenticator_Require(t *testing.T) {
	ctx := context.Background()
	tokens, err := token.NewManager("test-secret", "kodbank", time.Hour)
	require.NoError(t, err)
	sessions := store.NewMemoryTokenStore()
	authn := NewAuthenticator(services.NewSessionAuthority(tokens, sessions, zap.NewNop()), zap.NewNop())

	issue := func(accountID string, save bool) string {
		issued, err := tokens.Issue(accountID, "Name", accountID+"@x.com")
		require.NoError(t, err)
		if save {
			require.NoError(t, sessions.Save(ctx, models.Session{
				Token: issued.Token, AccountID: accountID, IssuedAt: issued.IssuedAt, ExpiresAt: issued.ExpiresAt,
			}))
		}
		return issued.Token
	}
	alice := issue("alice", true)
	bob := issue("bob", true)
	revoked := issue("carol", false)

	var seen string
	protected := authn.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := services.IdentityFrom(r.Context())
		require.True(t, ok)
		seen = id.AccountID
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		cookie string
		header string
		status int
		who    string
	}{
		{"no token", "", "", http.StatusUnauthorized, ""},
		{"bearer header", "", "Bearer " + alice, http.StatusNoContent, "alice"},
		{"cookie", bob, "", http.StatusNoContent, "bob"},
		{"cookie takes precedence", bob, "Bearer " + alice, http.StatusNoContent, "bob"},
		{"revoked cookie is not rescued by a good header", revoked, "Bearer " + alice, http.StatusUnauthorized, ""},
		{"malformed", "", "Bearer xyz", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: handlers.SessionCookie, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			protected.ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.who, seen)
			if tt.status == http.StatusUnauthorized {
				assert.Contains(t, rr.Body.String(), `"message"`)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.Empty(t, rr.Header().Get("Strict-Transport-Security"))
}
