package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/skwf/portal/config"
	"github.com/skwf/portal/storage"
	bboltstorage "github.com/skwf/portal/storage/bbolt"
	"github.com/skwf/portal/storage/memory"
	pgstorage "github.com/skwf/portal/storage/postgres"
	redisstorage "github.com/skwf/portal/storage/redis"
)

// openRepository opens the configured session store. The returned func
// releases it.
func openRepository(ctx context.Context, cfg *config.Config) (storage.Repository, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return memory.NewRepository(), func() {}, nil
	case config.DriverBBolt:
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("failed to create session directory: %w", err)
		}
		repo, err := bboltstorage.NewRepositoryFromFile(cfg.Store.Path, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open session file: %w", err)
		}
		return repo, func() { repo.Close() }, nil
	case config.DriverRedis:
		repo, err := redisstorage.NewRepositoryFromAddr(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { repo.Close() }, nil
	case config.DriverPostgres:
		repo, err := pgstorage.NewRepositoryFromDSN(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
