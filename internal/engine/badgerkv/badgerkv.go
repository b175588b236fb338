// Package badgerkv adapts the embedded Badger database to the engine
// contract. It exists to prove the engine abstraction: same three
// operations, same sentinel guard, durability via SyncWrites instead of
// an explicit flush.
package badgerkv

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v3"

	"github.com/kvslab/kvs/internal/engine"
)

const dataDirPerm = 0o750

// Config configures the Badger engine.
type Config struct {
	// Dir is the data directory. Required.
	Dir string

	Logger *slog.Logger
}

var _ engine.Engine = (*DB)(nil)

// DB is the Badger-backed engine. Implements engine.Engine.
type DB struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) a Badger engine over cfg.Dir.
func Open(cfg Config) (*DB, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("badgerkv: dir is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.Dir, dataDirPerm); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := engine.ClaimDir(cfg.Dir, engine.KindBadger); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = &badgerLogger{logger: logger}
	// Every acknowledged mutation must be durable, matching the log
	// engine's contract.
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	logger.Info("badger engine opened", "dir", cfg.Dir)
	return &DB{db: db, logger: logger}, nil
}

// Get returns the current value for key.
func (d *DB) Get(key string) (string, bool, error) {
	var value []byte

	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("badger get: %w", err)
	}
	return string(value), true, nil
}

// Set upserts the binding.
func (d *DB) Set(key, value string) error {
	err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("badger set: %w", err)
	}
	return nil
}

// Remove erases the binding, failing with engine.ErrKeyNotFound if the
// key is absent.
func (d *DB) Remove(key string) error {
	err := d.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err != nil {
			return err
		}
		return txn.Delete([]byte(key))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return engine.ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("badger remove: %w", err)
	}
	return nil
}

// Close shuts the database down.
func (d *DB) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("close badger db: %w", err)
	}
	return nil
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
