package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/abduss/cryptovault/internal/access"
	"github.com/abduss/cryptovault/internal/auth"
	"github.com/abduss/cryptovault/internal/config"
	"github.com/abduss/cryptovault/internal/file"
	"github.com/abduss/cryptovault/internal/logger"
	"github.com/abduss/cryptovault/internal/maintenance"
	"github.com/abduss/cryptovault/internal/metrics"
	"github.com/abduss/cryptovault/internal/quota"
	"github.com/abduss/cryptovault/internal/server"
	"github.com/abduss/cryptovault/internal/share"
	"github.com/abduss/cryptovault/internal/storage"
	"github.com/abduss/cryptovault/internal/vault"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.Init()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}
	metrics.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer dbPool.Close()

	if cfg.Postgres.RunMigrations {
		if err := storage.Migrate(ctx, dbPool); err != nil {
			log.Fatal("apply migrations", zap.Error(err))
		}
	}

	blobStore, err := server.OpenBlobStore(ctx, cfg)
	if err != nil {
		log.Fatal("open blob store", zap.Error(err), zap.String("backend", cfg.Storage.Backend))
	}

	scheme, err := share.SchemeByName(cfg.Storage.PermissionScheme)
	if err != nil {
		log.Fatal("permission scheme", zap.Error(err))
	}

	authRepo := auth.NewRepository(dbPool)
	authService := auth.NewService(authRepo, blobStore, cfg.Auth)

	fileRepo := file.NewRepository(dbPool)
	shareRepo := share.NewRepository(dbPool)
	quotaRepo := quota.NewRepository(dbPool)
	tracker := quota.NewTracker(blobStore, cfg.Storage.QuotaBytes)

	shareService := share.NewService(shareRepo, fileRepo, scheme, log.Named("share"))
	vaultService, err := vault.NewService(vault.Deps{
		Store:  blobStore,
		Files:  fileRepo,
		Shares: shareService,
		Access: access.NewResolver(fileRepo, shareRepo, scheme),
		Quota:  tracker,
		Locks:  quota.NewLocks(),
		Scheme: scheme,
	}, vault.Options{
		MaxFileSize: cfg.Storage.MaxFileSize,
		DeleteMode:  cfg.Storage.DeleteMode,
		Logger:      log.Named("vault"),
	})
	if err != nil {
		log.Fatal("build vault service", zap.Error(err))
	}

	sweeper := maintenance.NewSweeper(blobStore, fileRepo, quotaRepo, tracker, maintenance.Options{
		GracePeriod: cfg.Maintenance.OrphanGracePeriod,
		DryRun:      cfg.Maintenance.DryRun,
		Logger:      log.Named("sweep"),
	})
	go maintenance.RunEvery(ctx, cfg.Maintenance.SweepInterval, sweeper, log.Named("sweep"))

	router := server.NewRouter(server.Dependencies{
		Config:       cfg,
		DB:           dbPool,
		BlobStore:    blobStore,
		AuthService:  authService,
		VaultService: vaultService,
		ShareService: shareService,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("CryptoVault API listening",
			zap.String("addr", cfg.Server.Address()),
			zap.String("backend", cfg.Storage.Backend),
			zap.String("delete_mode", cfg.Storage.DeleteMode),
			zap.String("permission_scheme", scheme.Name()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}
