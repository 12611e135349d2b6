package server

import (
	"context"
	"fmt"

	"github.com/abduss/cryptovault/internal/blob"
	"github.com/abduss/cryptovault/internal/config"
	"github.com/abduss/cryptovault/internal/storage"
)

// OpenBlobStore builds the configured ciphertext backend.
func OpenBlobStore(ctx context.Context, cfg config.Config) (blob.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendMinIO:
		client, err := storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		if err := storage.EnsureBucket(ctx, client, cfg.MinIO.Bucket, cfg.MinIO.Region); err != nil {
			return nil, err
		}
		return blob.NewMinIOStore(client, cfg.MinIO.Bucket), nil
	case config.BackendLocal:
		store, err := blob.NewLocalStore(cfg.Storage.Root)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
