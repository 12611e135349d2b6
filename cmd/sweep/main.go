// Command sweep runs one reconciliation pass over the blob tree and exits.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/abduss/cryptovault/internal/config"
	"github.com/abduss/cryptovault/internal/file"
	"github.com/abduss/cryptovault/internal/logger"
	"github.com/abduss/cryptovault/internal/maintenance"
	"github.com/abduss/cryptovault/internal/quota"
	"github.com/abduss/cryptovault/internal/server"
	"github.com/abduss/cryptovault/internal/storage"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	dryRun := flag.Bool("dry-run", cfg.Maintenance.DryRun, "report what would be removed without removing it")
	flag.Parse()

	log, err := logger.Init()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer dbPool.Close()

	blobStore, err := server.OpenBlobStore(ctx, cfg)
	if err != nil {
		log.Fatal("open blob store", zap.Error(err))
	}

	sweeper := maintenance.NewSweeper(
		blobStore,
		file.NewRepository(dbPool),
		quota.NewRepository(dbPool),
		quota.NewTracker(blobStore, cfg.Storage.QuotaBytes),
		maintenance.Options{
			GracePeriod: cfg.Maintenance.OrphanGracePeriod,
			DryRun:      *dryRun,
			Logger:      log,
		},
	)

	report, runErr := sweeper.Run(ctx)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Error("encode report", zap.Error(err))
	}

	if runErr != nil {
		log.Error("sweep finished with errors", zap.Error(runErr))
		dbPool.Close()
		os.Exit(1)
	}
}
