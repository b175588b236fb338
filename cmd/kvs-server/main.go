// Package main provides the entry point for kvs-server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/kvslab/kvs/internal/engine"
	"github.com/kvslab/kvs/internal/engine/badgerkv"
	"github.com/kvslab/kvs/internal/engine/kvstore"
	"github.com/kvslab/kvs/internal/infra/confloader"
	"github.com/kvslab/kvs/internal/infra/shutdown"
	"github.com/kvslab/kvs/internal/server"
	"github.com/kvslab/kvs/internal/server/config"
	"github.com/kvslab/kvs/internal/telemetry/logger"
	"github.com/kvslab/kvs/internal/telemetry/metric"
	"github.com/kvslab/kvs/pkg/pool"
)

// Build information, set via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "kvs-server",
		Usage:   "persistent key-value store server",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "TCP bind address (ip:port)",
				EnvVars: []string{"KVS_SERVER_ADDR"},
			},
			&cli.StringFlag{
				Name:    "engine",
				Usage:   "storage engine (kvs|badger)",
				EnvVars: []string{"KVS_STORAGE_ENGINE"},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "data directory",
				EnvVars: []string{"KVS_STORAGE_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to YAML configuration file",
			},
			&cli.StringFlag{
				Name:  "pool",
				Usage: "worker pool backend (naive|shared|group)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "worker count (default: number of CPUs)",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Prometheus /metrics listen address (disabled when empty)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, loader, err := loadConfig(c)
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	slog.SetDefault(log)

	log.Info("starting kvs-server",
		"version", version,
		"addr", cfg.Server.Addr,
		"engine", cfg.Storage.Engine,
		"data_dir", cfg.Storage.DataDir)

	registry := metric.NewRegistry()

	eng, err := openEngine(cfg, registry, log)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}

	workers := cfg.Pool.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	poolKind, err := pool.ParseKind(cfg.Pool.Kind)
	if err != nil {
		eng.Close()
		return err
	}
	workerPool, err := pool.New(poolKind, workers)
	if err != nil {
		eng.Close()
		return fmt.Errorf("create thread pool: %w", err)
	}

	srv := server.New(eng, server.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		RateLimit:    cfg.Server.RateLimit,
	}, workerPool, log).RegisterMetrics(registry)

	if err := srv.Start(); err != nil {
		workerPool.Close()
		eng.Close()
		return fmt.Errorf("bind %s: %w", cfg.Server.Addr, err)
	}

	handler := shutdown.NewHandler(30 * time.Second)

	if cfg.Server.MetricsAddr != "" {
		metricsSrv := metric.Serve(cfg.Server.MetricsAddr, registry, log)
		handler.OnShutdown(func(ctx context.Context) error {
			return metricsSrv.Shutdown(ctx)
		})
	}

	if path := c.String("config"); path != "" {
		watcher, err := watchLogLevel(path, loader, log)
		if err != nil {
			log.Warn("config watch unavailable", "error", err)
		} else {
			handler.OnShutdown(func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	// Reverse order of startup: engine closes last.
	handler.OnShutdown(func(context.Context) error {
		log.Info("closing storage engine")
		return eng.Close()
	})
	handler.OnShutdown(func(context.Context) error {
		log.Info("closing worker pool")
		return workerPool.Close()
	})
	handler.OnShutdown(func(context.Context) error {
		log.Info("stopping server")
		srv.Close()
		return nil
	})

	log.Info("server started")
	if err := handler.Wait(); err != nil {
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}

// loadConfig merges defaults, config file, environment, and CLI flags,
// highest priority last.
func loadConfig(c *cli.Context) (*config.ServerConfig, *confloader.Loader, error) {
	opts := []confloader.Option{}
	if path := c.String("config"); path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	loader := confloader.NewLoader(opts...)

	cfg := config.Default()
	if err := loader.Load(cfg); err != nil {
		return nil, nil, err
	}

	overrides := map[string]any{}
	if c.IsSet("addr") {
		overrides["server.addr"] = c.String("addr")
	}
	if c.IsSet("metrics-addr") {
		overrides["server.metrics_addr"] = c.String("metrics-addr")
	}
	if c.IsSet("engine") {
		overrides["storage.engine"] = c.String("engine")
	}
	if c.IsSet("data-dir") {
		overrides["storage.data_dir"] = c.String("data-dir")
	}
	if c.IsSet("pool") {
		overrides["pool.kind"] = c.String("pool")
	}
	if c.IsSet("workers") {
		overrides["pool.workers"] = c.Int("workers")
	}
	if c.IsSet("log-level") {
		overrides["log.level"] = c.String("log-level")
	}
	if len(overrides) > 0 {
		if err := loader.LoadMap(overrides); err != nil {
			return nil, nil, err
		}
		if err := loader.Unmarshal(cfg); err != nil {
			return nil, nil, err
		}
	}

	if err := config.Verify(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, loader, nil
}

func openEngine(cfg *config.ServerConfig, registry *prometheus.Registry, log *slog.Logger) (engine.Engine, error) {
	kind, err := engine.ParseKind(cfg.Storage.Engine)
	if err != nil {
		return nil, err
	}

	switch kind {
	case engine.KindKv:
		storeCfg := kvstore.DefaultConfig(cfg.Storage.DataDir)
		storeCfg.SyncWrites = cfg.Storage.SyncWrites
		storeCfg.Logger = log
		if cfg.Storage.CompactionThreshold > 0 {
			storeCfg.CompactionThreshold = cfg.Storage.CompactionThreshold
		}
		if cfg.Storage.MaxActiveBytes > 0 {
			storeCfg.MaxActiveBytes = cfg.Storage.MaxActiveBytes
		}

		store, err := kvstore.Open(storeCfg)
		if err != nil {
			return nil, err
		}
		return store.RegisterMetrics(registry), nil

	case engine.KindBadger:
		return badgerkv.Open(badgerkv.Config{
			Dir:    cfg.Storage.DataDir,
			Logger: log,
		})

	default:
		return nil, fmt.Errorf("unknown engine %q", kind)
	}
}

// watchLogLevel reloads the log level when the config file changes.
func watchLogLevel(path string, loader *confloader.Loader, log *slog.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(log)
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(path); err != nil {
		watcher.Stop()
		return nil, err
	}

	watcher.OnChange(func(string) {
		if err := loader.LoadFile(path); err != nil {
			log.Warn("config reload failed", "error", err)
			return
		}
		if level := loader.String("log.level"); level != "" && level != logger.Level() {
			logger.SetLevel(level)
			log.Info("log level changed", "level", level)
		}
	})

	watcher.Start()
	return watcher, nil
}
