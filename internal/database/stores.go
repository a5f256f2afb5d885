package database

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kodbank/backend/internal/config"
	"github.com/kodbank/backend/internal/store"
)

// OpenUserStore returns the user store selected by store.driver and a func
// releasing its connections.
func OpenUserStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.UserStore, func(), error) {
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory user store, accounts are lost on restart")
		return store.NewMemoryUserStore(), func() {}, nil
	case "postgres":
		db, err := OpenPostgres(ctx, cfg.Database, log)
		if err != nil {
			return nil, nil, err
		}
		users := store.NewPostgresUserStore(db)
		if err := users.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate accounts: %w", err)
		}
		return users, func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// OpenTokenStore returns the session store selected by session.driver and a
// func releasing its connections.
func OpenTokenStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.TokenStore, func(), error) {
	switch cfg.SessionDriver {
	case "memory":
		return store.NewMemoryTokenStore(), func() {}, nil
	case "redis":
		rdb, err := OpenRedis(ctx, cfg.Redis, log)
		if err != nil {
			return nil, nil, err
		}
		return store.NewRedisTokenStore(rdb, cfg.Redis.KeyPrefix), func() { rdb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown session driver %q", cfg.SessionDriver)
	}
}
