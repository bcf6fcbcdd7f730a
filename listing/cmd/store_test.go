package main

import (
	"context"
	"testing"

	"tourbook/listing/configs"
	cachememory "tourbook/listing/internal/cache/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenCacheWithoutAddress(t *testing.T) {
	ctx := context.Background()
	for _, ttl := range []string{"", "5m"} {
		c, closeCache, err := openCache(ctx, configs.RedisConfig{TTL: ttl}, zap.NewNop())
		require.NoError(t, err, "ttl %q", ttl)
		assert.IsType(t, &cachememory.Cache{}, c)
		closeCache()
	}

	_, _, err := openCache(ctx, configs.RedisConfig{TTL: "later"}, zap.NewNop())
	assert.Error(t, err)
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, _, err := openStore(context.Background(), configs.DatabaseConfig{Driver: "sqlite"}, zap.NewNop())
	assert.Error(t, err)

	store, closeStore, err := openStore(context.Background(), configs.DatabaseConfig{Driver: "memory"}, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, store)
	closeStore()
}
