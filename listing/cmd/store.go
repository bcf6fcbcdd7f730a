package main

import (
	"context"
	"fmt"

	"tourbook/listing/configs"
	cachememory "tourbook/listing/internal/cache/memory"
	"tourbook/listing/internal/cache/redis"
	"tourbook/listing/internal/repository"
	"tourbook/listing/internal/repository/memory"
	"tourbook/listing/internal/repository/mysql"
	"tourbook/listing/internal/repository/postgres"
	"tourbook/listing/pkg/model"

	"go.uber.org/zap"
)

// openStore opens the entity store selected by cfg.Driver and runs the
// schema migration when enabled.
func openStore(ctx context.Context, cfg configs.DatabaseConfig, log *zap.Logger) (repository.Store, func(), error) {
	switch cfg.Driver {
	case "postgres":
		repo, err := postgres.New(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Migrate {
			if err := repo.Migrate(ctx); err != nil {
				repo.Close()
				return nil, nil, err
			}
		}
		return repo, repo.Close, nil
	case "mysql":
		repo, err := mysql.New(cfg.Mysql, log)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Migrate {
			if err := repo.Migrate(ctx); err != nil {
				_ = repo.Close()
				return nil, nil, err
			}
		}
		return repo, func() {
			if err := repo.Close(); err != nil {
				log.Warn("Failed to close mysql repository", zap.Error(err))
			}
		}, nil
	case "memory":
		log.Warn("Using the in-memory entity store, data is lost on restart")
		return memory.New(log), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

type aggregateCache interface {
	Get(ctx context.Context, ref model.SubjectRef) (model.Aggregate, error)
	Version(ctx context.Context, ref model.SubjectRef) (int64, error)
	Fill(ctx context.Context, ref model.SubjectRef, agg model.Aggregate, version int64) (bool, error)
	Invalidate(ctx context.Context, ref model.SubjectRef) error
}

// openCache connects to Redis when an address is configured and falls
// back to a process-local cache otherwise.
func openCache(ctx context.Context, cfg configs.RedisConfig, log *zap.Logger) (aggregateCache, func(), error) {
	if cfg.Address == "" {
		ttl, err := cfg.TTLDuration()
		if err != nil {
			return nil, nil, err
		}
		return cachememory.New(ttl), func() {}, nil
	}
	c, err := redis.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return c, func() {
		if err := c.Close(); err != nil {
			log.Warn("Failed to close redis cache", zap.Error(err))
		}
	}, nil
}
