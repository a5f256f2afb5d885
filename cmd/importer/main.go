// Command importer loads accounts from a legacy users.json file into the
// configured user store. Existing emails are left untouched.
package main

import (
	"context"
	"flag"
	"os"

	"go.uber.org/zap"

	"github.com/kodbank/backend/internal/config"
	"github.com/kodbank/backend/internal/database"
	"github.com/kodbank/backend/internal/importer"
	"github.com/kodbank/backend/internal/logger"
)

func main() {
	path := flag.String("file", "data/users.json", "path to the legacy users file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Must("info", false).Fatal("invalid configuration", zap.Error(err))
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		logger.Must("info", false).Fatal("invalid log level", zap.Error(err))
	}
	log = log.Named("importer")
	defer log.Sync()

	if cfg.StoreDriver == "memory" {
		log.Fatal("refusing to import into the in-memory store; set STORE_DRIVER=postgres")
	}

	ctx := context.Background()
	users, closeUsers, err := database.OpenUserStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("open user store", zap.Error(err))
	}
	defer closeUsers()

	f, err := os.Open(*path)
	if err != nil {
		log.Fatal("open users file", zap.Error(err))
	}
	defer f.Close()

	rep, err := importer.Import(ctx, f, users, cfg.Ledger.MinorUnits, log)
	if err != nil {
		log.Fatal("import failed", zap.Error(err), zap.Int("imported", rep.Imported))
	}
	log.Info("import finished",
		zap.Int("imported", rep.Imported),
		zap.Int("skipped", rep.Skipped),
		zap.Int("failed", rep.Failed))
}
