package configs

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServiceConfig struct {
	API              apiConfig              `yaml:"api"`
	ServiceDiscovery serviceDiscoveryConfig `yaml:"serviceDiscovery"`
	MessengerConfig  MessengerConfig        `yaml:"messenger"`
	DatabaseConfig   DatabaseConfig         `yaml:"database"`
	Cache            CacheConfig            `yaml:"cache"`
	Jaeger           JaegerConfig           `yaml:"jaeger"`
	Prometheus       PrometheusConfig       `yaml:"prometheus"`
	Auth             AuthConfig             `yaml:"auth"`
	Booking          BookingConfig          `yaml:"booking"`
	Reconcile        ReconcileConfig        `yaml:"reconcile"`
	RateLimit        RateLimitConfig        `yaml:"rateLimit"`
	Development      bool                   `yaml:"development"`
}

type apiConfig struct {
	Port     int    `yaml:"port"`
	HTTPPort int    `yaml:"httpPort"`
	CertFile string `yaml:"certFile"`
	KeyFile  string `yaml:"keyFile"`
}

type serviceDiscoveryConfig struct {
	Consul consulConfig `yaml:"consul"`
}

type consulConfig struct {
	Address string `yaml:"address"`
}

type MessengerConfig struct {
	Kafka KafkaConfig `yaml:"kafka"`
}

type KafkaConfig struct {
	Address string `yaml:"address"`
	GroupID string `yaml:"groupId"`
	Topic   string `yaml:"topic"`
}

// DatabaseConfig selects the entity store backend: "postgres", "mysql" or "memory".
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	Migrate  bool           `yaml:"migrate"`
	Mysql    MysqlConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type MysqlConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"password"`
	Name string `yaml:"db_name"`
}

type PostgresConfig struct {
	DSN         string `yaml:"dsn"`
	MaxConns    int32  `yaml:"maxConns"`
	MaxIdleTime string `yaml:"maxIdleTime"`
}

type CacheConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTL      string `yaml:"ttl"`
}

// TTLDuration parses TTL. An empty value keeps entries until they are
// invalidated.
func (c RedisConfig) TTLDuration() (time.Duration, error) {
	if c.TTL == "" {
		return 0, nil
	}
	return time.ParseDuration(c.TTL)
}

type JaegerConfig struct {
	URL string `yaml:"url"`
}

type PrometheusConfig struct {
	MetricsPort int `yaml:"metricsPort"`
}

type AuthConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

type BookingConfig struct {
	Salt      string `yaml:"salt"`
	MinLength int    `yaml:"minLength"`
}

type ReconcileConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
}

type RateLimitConfig struct {
	Limit int `yaml:"limit"`
	Burst int `yaml:"burst"`
}

// Load decodes the yaml file at path and applies secret overrides
// from the environment. A .env file next to the binary is loaded
// first when present.
func Load(path string) (*ServiceConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg := defaults()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func defaults() *ServiceConfig {
	return &ServiceConfig{
		API: apiConfig{Port: 8082, HTTPPort: 8080},
		DatabaseConfig: DatabaseConfig{
			Driver: "postgres",
			Mysql:  MysqlConfig{Port: 3306},
		},
		MessengerConfig: MessengerConfig{Kafka: KafkaConfig{GroupID: "listing", Topic: "review-moderation"}},
		Cache:           CacheConfig{Redis: RedisConfig{TTL: "10m"}},
		Prometheus:      PrometheusConfig{MetricsPort: 8091},
		Auth:            AuthConfig{Issuer: "tourbook"},
		Booking:         BookingConfig{MinLength: 8},
		Reconcile:       ReconcileConfig{Interval: "1h"},
		RateLimit:       RateLimitConfig{Limit: 100, Burst: 50},
	}
}

func (c *ServiceConfig) applyEnv() {
	setString(&c.DatabaseConfig.Postgres.DSN, "LISTING_POSTGRES_DSN")
	setString(&c.DatabaseConfig.Mysql.Pass, "LISTING_MYSQL_PASSWORD")
	setString(&c.Cache.Redis.Password, "LISTING_REDIS_PASSWORD")
	setString(&c.Auth.Secret, "LISTING_AUTH_SECRET")
	setString(&c.Booking.Salt, "LISTING_BOOKING_SALT")
	if v, ok := os.LookupEnv("LISTING_DEVELOPMENT"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Development = b
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
