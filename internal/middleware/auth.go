package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/kodbank/backend/internal/handlers"
	"github.com/kodbank/backend/internal/services"
)

// Authenticator gates routes behind a valid, unrevoked session.
type Authenticator struct {
	authority *services.SessionAuthority
	log       *zap.Logger
}

func NewAuthenticator(authority *services.SessionAuthority, log *zap.Logger) *Authenticator {
	return &Authenticator{authority: authority, log: log.Named("http.authn")}
}

// Require resolves the cookie or bearer token to an identity and stores it
// in the request context.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.authority.Authenticate(r.Context(), handlers.BearerFromRequest(r))
		if err != nil {
			handlers.SendServiceError(w, a.log, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(services.WithIdentity(r.Context(), id)))
	})
}
