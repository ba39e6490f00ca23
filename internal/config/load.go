// Package config defines environment configuration structs and loaders.
package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type AppConfig struct {
	NodeEnvConfig
	RetryEnvConfig
	MonitorEnvConfig
	ServerEnvConfig
	RedisEnvConfig
	Environment string `env:"ENVIRONMENT" envDefault:"dev"`
	LogLevel    string `env:"LOG_LEVEL"`
}

func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NodeEnvConfig describes the node endpoint and its local identity.
type NodeEnvConfig struct {
	RPCURL         string        `env:"NODE_RPC_URL" envDefault:"http://localhost:26657"`
	ChainID        string        `env:"NODE_CHAIN_ID" envDefault:"qie_1990-1"`
	Moniker        string        `env:"NODE_MONIKER" envDefault:"bridgeguard-ai-validator"`
	Home           string        `env:"NODE_HOME" envDefault:"~/.qieMainnetNode"`
	Binary         string        `env:"NODE_BINARY" envDefault:"qied"`
	Denom          string        `env:"NODE_DENOM" envDefault:"aqie"`
	RequestTimeout time.Duration `env:"NODE_RPC_TIMEOUT" envDefault:"10s"`
	StopGrace      time.Duration `env:"NODE_STOP_GRACE" envDefault:"10s"`
}

// RetryEnvConfig configures backoff for outbound node calls.
type RetryEnvConfig struct {
	MaxAttempts int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"4"`
	BaseDelay   time.Duration `env:"RETRY_BASE_DELAY" envDefault:"1s"`
	Multiplier  float64       `env:"RETRY_MULTIPLIER" envDefault:"2"`
	MaxDelay    time.Duration `env:"RETRY_MAX_DELAY" envDefault:"8s"`
	Jitter      float64       `env:"RETRY_JITTER" envDefault:"0.25"`
}

// MonitorEnvConfig holds the defaults used when waiting for the node to sync.
type MonitorEnvConfig struct {
	SyncMaxPolls     int           `env:"SYNC_MAX_POLLS" envDefault:"60"`
	SyncPollInterval time.Duration `env:"SYNC_POLL_INTERVAL" envDefault:"5s"`
	// CallbackEvery is the block interval at which the watcher logs a height checkpoint.
	CallbackEvery int64 `env:"WATCH_CALLBACK_BLOCKS" envDefault:"100"`
}

// ServerEnvConfig configures the dashboard API server.
type ServerEnvConfig struct {
	Address       string `env:"API_ADDRESS" envDefault:"0.0.0.0"`
	Port          int    `env:"API_PORT" envDefault:"8080"`
	BodySizeLimit int    `env:"API_BODY_LIMIT" envDefault:"1048576"`
	RateLimit     int    `env:"API_RATE_LIMIT" envDefault:"60"`
}

// RedisEnvConfig configures the Redis snapshot store. An empty host disables it.
type RedisEnvConfig struct {
	RedisHost     string `env:"REDIS_HOST"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisUsername string `env:"REDIS_USERNAME"`
	SnapshotKey   string `env:"REDIS_SNAPSHOT_KEY" envDefault:"nodeguard:health:latest"`
}

// Enabled reports whether a Redis host was configured.
func (r RedisEnvConfig) Enabled() bool {
	return strings.TrimSpace(r.RedisHost) != ""
}

type IntervalConfig struct {
	WatchInterval time.Duration
}

var (
	DevIntervalConfig = &IntervalConfig{
		WatchInterval: 2 * time.Second,
	}
	TestIntervalConfig = &IntervalConfig{
		WatchInterval: 5 * time.Second,
	}

	ProdIntervalConfig = &IntervalConfig{
		WatchInterval: 5 * time.Second,
	}
)

func NewIntervalConfig(environment string) *IntervalConfig {
	switch strings.ToLower(environment) {
	case "dev":
		return DevIntervalConfig
	case "test":
		return TestIntervalConfig
	case "prod":
		return ProdIntervalConfig
	}

	return DevIntervalConfig
}
