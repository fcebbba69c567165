// Package storage selects the persistent client state backend.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/baghaven/storefront/internal/config"
	"github.com/baghaven/storefront/internal/logger"
	"github.com/baghaven/storefront/internal/model"
	"github.com/baghaven/storefront/internal/storage/file"
	"github.com/baghaven/storefront/internal/storage/memory"
	"github.com/baghaven/storefront/internal/storage/minio"
	"github.com/baghaven/storefront/internal/storage/postgres"
	"github.com/baghaven/storefront/internal/storage/redis"
)

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMinio    = "minio"
)

// Backend is an opened store. Watcher is nil when the backend cannot observe
// other writers.
type Backend struct {
	Store   model.Store
	Watcher model.Watcher
	closers []func() error
}

// Close releases the backend's connections.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open builds the backend named by cfg.Store.Driver.
func Open(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*Backend, error) {
	profile := cfg.Store.Profile

	switch cfg.Store.Driver {
	case DriverMemory:
		tab := memory.New()
		return &Backend{Store: tab, Watcher: tab}, nil

	case DriverFile, "":
		s, err := file.New(cfg.Store.FilePath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open file store: %w", err)
		}
		return &Backend{Store: s, Watcher: s}, nil

	case DriverPostgres:
		conn, err := postgres.NewConnection(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		s := postgres.NewStore(conn, profile, logger)
		return &Backend{Store: s, Watcher: s, closers: []func() error{conn.Close}}, nil

	case DriverRedis:
		client, err := redis.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis store: %w", err)
		}
		s := redis.NewStore(client, profile, logger)
		return &Backend{Store: s, Watcher: s, closers: []func() error{client.Close}}, nil

	case DriverMinio:
		client, err := minio.NewMinioClient(cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.UseSSL)
		if err != nil {
			return nil, fmt.Errorf("failed to open minio store: %w", err)
		}
		s, err := minio.NewStore(ctx, client, cfg.Storage.Bucket, profile, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open minio store: %w", err)
		}
		return &Backend{Store: s, Watcher: s}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
