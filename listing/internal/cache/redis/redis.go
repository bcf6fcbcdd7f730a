package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"tourbook/listing/configs"
	"tourbook/listing/internal/cache"
	"tourbook/listing/pkg/model"
	"tourbook/pkg/logging"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const tracerID = "listing-cache-redis"

// Cache defines a Redis backed aggregate cache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New connects to Redis and checks the connection.
func New(ctx context.Context, cfg configs.RedisConfig, logger *zap.Logger) (*Cache, error) {
	logger = logger.With(
		zap.String(logging.FieldComponent, "cache"),
		zap.String(logging.FieldType, "redis"),
	)
	ttl, err := cfg.TTLDuration()
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	logger.Info("Connected to redis", zap.String("address", cfg.Address))
	return &Cache{client: client, ttl: ttl, logger: logger}, nil
}

// Get returns the cached aggregate of ref.
func (c *Cache) Get(ctx context.Context, ref model.SubjectRef) (model.Aggregate, error) {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Cache/Get")
	defer span.End()
	val, err := c.client.Get(ctx, cache.AggregateKey(ref)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Aggregate{}, cache.ErrNotFound
	} else if err != nil {
		return model.Aggregate{}, err
	}
	var agg model.Aggregate
	if err := json.Unmarshal(val, &agg); err != nil {
		c.logger.Warn("Dropping undecodable cache entry", zap.String(logging.FieldSubject, ref.String()), zap.Error(err))
		return model.Aggregate{}, cache.ErrNotFound
	}
	return agg, nil
}

// Version returns the invalidation counter of ref.
func (c *Cache) Version(ctx context.Context, ref model.SubjectRef) (int64, error) {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Cache/Version")
	defer span.End()
	v, err := c.client.Get(ctx, cache.VersionKey(ref)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Fill stores the aggregate of ref unless ref was invalidated after
// version was read. It reports whether the entry was stored.
func (c *Cache) Fill(ctx context.Context, ref model.SubjectRef, agg model.Aggregate, version int64) (bool, error) {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Cache/Fill")
	defer span.End()
	data, err := json.Marshal(agg)
	if err != nil {
		return false, err
	}
	versionKey := cache.VersionKey(ref)
	stored := false
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cache.AggregateKey(ref), data, c.ttl)
			return nil
		})
		stored = err == nil
		return err
	}, versionKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return stored, err
}

// Invalidate evicts the aggregate of ref and rejects fills started
// before the call.
func (c *Cache) Invalidate(ctx context.Context, ref model.SubjectRef) error {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Cache/Invalidate")
	defer span.End()
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, cache.AggregateKey(ref))
		pipe.Incr(ctx, cache.VersionKey(ref))
		return nil
	})
	return err
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.client.Close()
}
