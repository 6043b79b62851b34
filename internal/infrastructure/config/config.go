package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Remote     RemoteConfig
	Poll       PollConfig
	Guard      GuardConfig
	Credential CredentialConfig
	Redis      RedisConfig
}

type RemoteConfig struct {
	BaseURL        string        `env:"INGEST_API_URL,         default=http://localhost:8000"`
	RequestTimeout time.Duration `env:"INGEST_REQUEST_TIMEOUT, default=15s"`
}

type PollConfig struct {
	Interval       time.Duration `env:"POLL_INTERVAL,        default=5s"`
	RequestTimeout time.Duration `env:"POLL_REQUEST_TIMEOUT, default=10s"`
}

type GuardConfig struct {
	ResolveTimeout time.Duration `env:"GUARD_RESOLVE_TIMEOUT, default=10s"`
}

type CredentialConfig struct {
	Backend    string `env:"CREDENTIAL_BACKEND, default=file"`
	Path       string `env:"CREDENTIAL_PATH"`
	Passphrase string `env:"CREDENTIAL_PASSPHRASE"`
}

type RedisConfig struct {
	Addr          string `env:"REDIS_ADDR,           default=localhost:6379"`
	Password      string `env:"REDIS_PASSWORD"`
	DB            int    `env:"REDIS_DB,             default=0"`
	CredentialKey string `env:"REDIS_CREDENTIAL_KEY, default=ingest:credential"`
}

// IsDevelopment reports whether human-friendly output should be used.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev" || c.Env == "local"
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration through l. Tests pass a MapLookuper.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.Credential.Backend = strings.ToLower(strings.TrimSpace(c.Credential.Backend))
	switch c.Credential.Backend {
	case BackendFile, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("config: CREDENTIAL_BACKEND must be one of file, redis, memory; got %q", c.Credential.Backend)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("config: POLL_INTERVAL must be positive")
	}
	return nil
}
