// Package config defines the server configuration structure.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kvslab/kvs/internal/engine"
	"github.com/kvslab/kvs/pkg/pool"
)

// Default configuration values.
const (
	DefaultAddr    = "127.0.0.1:4000"
	DefaultEngine  = "kvs"
	DefaultDataDir = "./data"

	DefaultPoolKind = "shared"

	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ServerConfig is the root configuration for kvs-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server"`
	Storage StorageSection `koanf:"storage"`
	Pool    PoolSection    `koanf:"pool"`
	Log     LogSection     `koanf:"log"`
}

// ServerSection configures the TCP endpoint.
type ServerSection struct {
	Addr string `koanf:"addr"`

	// MetricsAddr enables the Prometheus /metrics listener when set.
	MetricsAddr string `koanf:"metrics_addr"`

	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// RateLimit is the maximum requests per second per client IP.
	// Zero disables rate limiting.
	RateLimit int `koanf:"rate_limit"`
}

// StorageSection configures the storage engine.
type StorageSection struct {
	Engine  string `koanf:"engine"`
	DataDir string `koanf:"data_dir"`

	// Log-engine tuning; ignored by the badger engine.
	CompactionThreshold int   `koanf:"compaction_threshold"`
	MaxActiveBytes      int64 `koanf:"max_active_bytes"`
	SyncWrites          bool  `koanf:"sync_writes"`
}

// PoolSection configures the worker pool.
type PoolSection struct {
	Kind    string `koanf:"kind"`
	Workers int    `koanf:"workers"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the default server configuration. Workers defaults to
// zero, meaning "number of CPUs", resolved by the caller.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Addr:         DefaultAddr,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
		},
		Storage: StorageSection{
			Engine:  DefaultEngine,
			DataDir: DefaultDataDir,
		},
		Pool: PoolSection{
			Kind: DefaultPoolKind,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if cfg.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if cfg.Storage.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	if _, err := engine.ParseKind(cfg.Storage.Engine); err != nil {
		return fmt.Errorf("storage.engine: %w", err)
	}
	if _, err := pool.ParseKind(cfg.Pool.Kind); err != nil {
		return fmt.Errorf("pool.kind: %w", err)
	}
	if cfg.Pool.Workers < 0 {
		return errors.New("pool.workers must not be negative")
	}
	if cfg.Server.RateLimit < 0 {
		return errors.New("server.rate_limit must not be negative")
	}
	if cfg.Storage.CompactionThreshold < 0 {
		return errors.New("storage.compaction_threshold must not be negative")
	}
	if cfg.Storage.MaxActiveBytes < 0 {
		return errors.New("storage.max_active_bytes must not be negative")
	}
	return nil
}
