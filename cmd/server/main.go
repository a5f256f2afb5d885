package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kodbank/backend/docs"
	"github.com/kodbank/backend/internal/config"
	"github.com/kodbank/backend/internal/database"
	"github.com/kodbank/backend/internal/handlers"
	"github.com/kodbank/backend/internal/lock"
	"github.com/kodbank/backend/internal/logger"
	mW "github.com/kodbank/backend/internal/middleware"
	"github.com/kodbank/backend/internal/money"
	"github.com/kodbank/backend/internal/password"
	"github.com/kodbank/backend/internal/server"
	"github.com/kodbank/backend/internal/services"
	"github.com/kodbank/backend/internal/store"
	"github.com/kodbank/backend/internal/token"
)

// @title KodBank API
// @version 1.0
// @description Accounts, sessions and balance transfers for KodBank
// @host localhost:5000
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger is not configured yet
		logger.Must("info", false).Fatal("invalid configuration", zap.Error(err))
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		logger.Must("info", false).Fatal("invalid log level", zap.Error(err))
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	docs.SwaggerInfo.Host = "localhost:" + cfg.Server.Port

	users, closeUsers, err := database.OpenUserStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeUsers()

	sessions, closeSessions, err := database.OpenTokenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSessions()

	if mem, ok := sessions.(*store.MemoryTokenStore); ok {
		go mem.Run(ctx, time.Minute)
	}

	hasher, err := password.NewHasher(password.Params(cfg.Argon2))
	if err != nil {
		return err
	}
	tokens, err := token.NewManager(cfg.JWT.SecretKey, cfg.JWT.Issuer, cfg.JWT.Expiry)
	if err != nil {
		return err
	}

	creds := services.NewCredentialService(users, sessions, hasher, tokens, cfg.Ledger.InitialBalance, log)
	authority := services.NewSessionAuthority(tokens, sessions, log)
	ledger := services.NewLedgerEngine(users, lock.NewAccountLocker(cfg.Ledger.LockTimeout), cfg.Ledger.MaxRetries, log)

	router := server.NewRouter(server.Deps{
		Auth:          handlers.NewAuthHandler(creds, handlers.CookieConfig{Secure: cfg.CookieSecure, TTL: cfg.JWT.Expiry}, log),
		Accounts:      handlers.NewAccountHandler(creds, ledger, money.NewConverter(cfg.Ledger.MinorUnits), log),
		Authenticator: mW.NewAuthenticator(authority, log),
		Log:           log,
	}, server.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.StoreDriver),
			zap.String("sessions", cfg.SessionDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info("server stopped")
	return nil
}
