package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  port: 9000
database:
  driver: memory
`), 0o600))
	t.Setenv("LISTING_AUTH_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, 8080, cfg.API.HTTPPort)
	assert.Equal(t, "memory", cfg.DatabaseConfig.Driver)
	assert.Equal(t, "s3cret", cfg.Auth.Secret)
	assert.Equal(t, "review-moderation", cfg.MessengerConfig.Kafka.Topic)
	assert.Equal(t, 8, cfg.Booking.MinLength)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRedisTTLDuration(t *testing.T) {
	ttl, err := RedisConfig{}.TTLDuration()
	require.NoError(t, err)
	assert.Zero(t, ttl)

	ttl, err = RedisConfig{TTL: "10m"}.TTLDuration()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, ttl)

	_, err = RedisConfig{TTL: "soon"}.TTLDuration()
	assert.Error(t, err)
}
