package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Env        string `env:"ENV,         default=development"`
	LogLevel   string `env:"LOG_LEVEL,   default=info"`
	ListenAddr string `env:"LISTEN_ADDR, default=:8080"`
	// InstanceID scopes persisted credentials to one client installation.
	InstanceID string `env:"CLIENT_INSTANCE_ID, default=default"`

	Backend  BackendConfig
	Provider ProviderConfig
	Timeouts TimeoutConfig
	Mongo    MongoConfig
	Redis    RedisConfig
}

type BackendConfig struct {
	BaseURL        string        `env:"BACKEND_URL,             default=http://localhost:3000"`
	RequestTimeout time.Duration `env:"BACKEND_REQUEST_TIMEOUT, default=10s"`
}

type ProviderConfig struct {
	BaseURL string `env:"PROVIDER_URL,      default=http://localhost:9999"`
	FeedURL string `env:"PROVIDER_FEED_URL"`
	APIKey  string `env:"PROVIDER_API_KEY"`
}

type TimeoutConfig struct {
	PrimaryVerify     time.Duration `env:"PRIMARY_VERIFY_TIMEOUT,   default=8s"`
	SecondaryLookup   time.Duration `env:"SECONDARY_LOOKUP_TIMEOUT, default=8s"`
	ProfileLoad       time.Duration `env:"PROFILE_LOAD_TIMEOUT,     default=10s"`
	Safety            time.Duration `env:"SAFETY_TIMEOUT,           default=15s"`
	ProfileStaleAfter time.Duration `env:"PROFILE_STALE_AFTER,      default=30s"`
}

// MongoConfig is optional; an empty URI selects the in-memory profile store.
type MongoConfig struct {
	URI      string `env:"MONGO_URI"`
	Database string `env:"MONGO_DB, default=booking"`
}

// RedisConfig is optional; an empty Addr selects the in-memory credential store.
type RedisConfig struct {
	Addr          string        `env:"REDIS_ADDR"`
	Password      string        `env:"REDIS_PASSWORD"`
	DB            int           `env:"REDIS_DB,       default=0"`
	CredentialTTL time.Duration `env:"CREDENTIAL_TTL, default=0s"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := load(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

func load(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	if cfg.Timeouts.Safety <= cfg.Timeouts.PrimaryVerify {
		return nil, fmt.Errorf("SAFETY_TIMEOUT (%s) must exceed PRIMARY_VERIFY_TIMEOUT (%s)", cfg.Timeouts.Safety, cfg.Timeouts.PrimaryVerify)
	}
	return &cfg, nil
}
