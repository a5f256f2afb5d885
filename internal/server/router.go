// Package server assembles the HTTP router.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"github.com/kodbank/backend/internal/handlers"
	mW "github.com/kodbank/backend/internal/middleware"
)

type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

type Deps struct {
	Auth          *handlers.AuthHandler
	Accounts      *handlers.AccountHandler
	Authenticator *mW.Authenticator
	Log           *zap.Logger
}

func NewRouter(d Deps, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Log.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(mW.SecurityHeaders)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("KodBank API is running"))
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy"}`))
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", d.Auth.Register)
		r.Post("/login", d.Auth.Login)
		r.Post("/logout", d.Auth.Logout)

		r.Group(func(r chi.Router) {
			r.Use(d.Authenticator.Require)

			r.Get("/me", d.Accounts.Me)
			r.Get("/balance", d.Accounts.Balance)
			r.Post("/transfer", d.Accounts.Transfer)
			r.Post("/withdraw", d.Accounts.Withdraw)
		})
	})

	return r
}

// requestLogger replaces chi's stdlib request logger with a zap one.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("remote", r.RemoteAddr))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
