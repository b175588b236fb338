package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/kvslab/kvs/internal/engine"
	"github.com/kvslab/kvs/pkg/cmap"
)

// Default configuration values.
const (
	DefaultCompactionThreshold       = 10000
	DefaultMaxActiveBytes      int64 = 10 << 20 // 10MiB
)

// Config configures the log engine.
type Config struct {
	// Dir is the data directory. Required.
	Dir string

	// CompactionThreshold is the number of index overwrites that
	// triggers compaction.
	CompactionThreshold int

	// MaxActiveBytes triggers compaction when the active log file
	// grows past it, independent of the overwrite count.
	MaxActiveBytes int64

	// SyncWrites fsyncs the log file on every mutation. Off by
	// default: mutations are flushed to the OS, fsync happens at
	// compaction publish and Close.
	SyncWrites bool

	Logger *slog.Logger
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:                 dir,
		CompactionThreshold: DefaultCompactionThreshold,
		MaxActiveBytes:      DefaultMaxActiveBytes,
	}
}

func applyDefaults(cfg *Config) {
	if cfg.CompactionThreshold == 0 {
		cfg.CompactionThreshold = DefaultCompactionThreshold
	}
	if cfg.MaxActiveBytes == 0 {
		cfg.MaxActiveBytes = DefaultMaxActiveBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}

var _ engine.Engine = (*Store)(nil)

// Store is the log-structured engine. It implements engine.Engine and
// is safe for concurrent use: reads proceed in parallel against the
// published index, writes serialize on an internal mutex.
type Store struct {
	cfg    Config
	logger *slog.Logger

	// index maps key -> location of its latest record. Compaction
	// publishes a fresh map atomically; readers load the pointer once
	// per operation.
	index atomic.Pointer[cmap.Map[location]]
	epoch atomic.Uint64

	mu         sync.Mutex // guards the write path and the fields below
	active     *os.File
	activeSize int64
	redundant  int
	closed     bool

	lock    *dirLock
	readers sync.Pool

	metrics engineMetrics
}

// Open opens (or creates) the log engine over cfg.Dir.
func Open(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("kvstore: dir is required")
	}
	applyDefaults(&cfg)

	if err := os.MkdirAll(cfg.Dir, dataDirPerm); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := engine.ClaimDir(cfg.Dir, engine.KindKv); err != nil {
		return nil, err
	}

	lock, err := acquireDirLock(cfg.Dir)
	if err != nil {
		return nil, err
	}

	s := &Store{
		cfg:    cfg,
		logger: cfg.Logger,
		lock:   lock,
	}
	s.readers.New = func() any { return newReaderCache(cfg.Dir) }

	if err := s.recover(); err != nil {
		lock.release()
		return nil, err
	}

	s.logger.Info("kvstore opened",
		"dir", cfg.Dir,
		"epoch", s.epoch.Load(),
		"keys", s.index.Load().Count(),
		"log_size", s.activeSize)

	return s, nil
}

// recover chooses the highest epoch present, discards superseded files
// left behind by an interrupted compaction, replays the active file
// into a fresh index, and opens the file for append.
func (s *Store) recover() error {
	epochs, err := scanEpochs(s.cfg.Dir)
	if err != nil {
		return err
	}

	var epoch uint64
	if len(epochs) == 0 {
		file, err := os.OpenFile(logPath(s.cfg.Dir, 0), os.O_CREATE|os.O_EXCL|os.O_WRONLY, logFilePerm)
		if err != nil {
			return fmt.Errorf("create initial log: %w", err)
		}
		file.Close()
	} else {
		epoch = epochs[len(epochs)-1]
		if len(epochs) > 1 {
			s.logger.Warn("removing superseded log files", "keep_epoch", epoch, "count", len(epochs)-1)
		}
	}
	if err := removeStaleFiles(s.cfg.Dir, epoch); err != nil {
		return err
	}

	index, size, err := s.replay(epoch)
	if err != nil {
		return err
	}

	active, err := os.OpenFile(logPath(s.cfg.Dir, epoch), os.O_WRONLY|os.O_APPEND, logFilePerm)
	if err != nil {
		return fmt.Errorf("open active log: %w", err)
	}

	s.index.Store(index)
	s.epoch.Store(epoch)
	s.active = active
	s.activeSize = size
	return nil
}

// replay streams JSON records from the log file at epoch, building the
// index. Both Set and Rm records overwrite the index entry; Get
// distinguishes the variant after reading. A partial trailing record is
// discarded and the file truncated back to the last complete record so
// later appends stay parseable.
func (s *Store) replay(epoch uint64) (*cmap.Map[location], int64, error) {
	path := logPath(s.cfg.Dir, epoch)

	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open log for replay: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log: %w", err)
	}

	index := cmap.New[location]()
	dec := json.NewDecoder(file)
	var offset int64

	for {
		var cmd command
		err := dec.Decode(&cmd)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.logger.Warn("discarding partial trailing record",
				"path", path,
				"offset", offset,
				"error", err)
			break
		}
		next := dec.InputOffset()
		index.Set(cmd.key, location{epoch: epoch, offset: offset, length: next - offset})
		offset = next
	}

	if offset < stat.Size() {
		if err := os.Truncate(path, offset); err != nil {
			return nil, 0, fmt.Errorf("truncate partial record: %w", err)
		}
	}
	return index, offset, nil
}

// Get returns the current value for key.
func (s *Store) Get(key string) (string, bool, error) {
	loc, ok := s.index.Load().Get(key)
	if !ok {
		return "", false, nil
	}

	rc := s.readers.Get().(*readerCache)
	defer s.readers.Put(rc)

	for attempt := 0; ; attempt++ {
		data, err := rc.readAt(loc)
		if err != nil {
			// The record's file can vanish if compaction published a
			// new epoch between the index resolve and the read. The
			// current index has the fresh location; re-resolve and
			// retry. Bounded, in case the key keeps landing on
			// epochs that are compacted away under us.
			if errors.Is(err, fs.ErrNotExist) && attempt < 3 {
				loc, ok = s.index.Load().Get(key)
				if !ok {
					return "", false, nil
				}
				continue
			}
			return "", false, fmt.Errorf("read log record: %w", err)
		}

		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			return "", false, fmt.Errorf("decode log record: %w", err)
		}
		if cmd.op == opRm {
			return "", false, nil
		}
		return cmd.value, true, nil
	}
}

// Set upserts the binding. Durable (flushed to the OS) on return.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return engine.ErrClosed
	}
	return s.appendLocked(setCommand(key, value))
}

// Remove erases the binding, failing with engine.ErrKeyNotFound if the
// key is absent (never set, or its latest record is a tombstone).
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return engine.ErrClosed
	}

	loc, ok := s.index.Load().Get(key)
	if !ok {
		return engine.ErrKeyNotFound
	}

	rc := s.readers.Get().(*readerCache)
	data, err := rc.readAt(loc)
	s.readers.Put(rc)
	if err != nil {
		return fmt.Errorf("read log record: %w", err)
	}
	var cmd command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return fmt.Errorf("decode log record: %w", err)
	}
	if cmd.op == opRm {
		return engine.ErrKeyNotFound
	}

	return s.appendLocked(rmCommand(key))
}

// appendLocked writes one record to the active file and publishes its
// index entry. Caller holds s.mu.
func (s *Store) appendLocked(cmd command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode log record: %w", err)
	}

	offset, err := s.active.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("seek log end: %w", err)
	}
	if _, err := s.active.Write(data); err != nil {
		return fmt.Errorf("append log record: %w", err)
	}
	if s.cfg.SyncWrites {
		if err := s.active.Sync(); err != nil {
			return fmt.Errorf("sync log: %w", err)
		}
	}
	s.activeSize = offset + int64(len(data))

	loc := location{epoch: s.epoch.Load(), offset: offset, length: int64(len(data))}
	if _, existed := s.index.Load().Swap(cmd.key, loc); existed {
		s.redundant++
	}
	s.metrics.observeAppend(s.index.Load().Count(), s.activeSize)

	if s.redundant > s.cfg.CompactionThreshold || s.activeSize > s.cfg.MaxActiveBytes {
		return s.compactLocked()
	}
	return nil
}

// Close flushes the active file and releases the directory lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if err := s.active.Sync(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.active.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.lock.release(); err != nil && firstErr == nil {
		firstErr = err
	}

	s.logger.Info("kvstore closed", "dir", s.cfg.Dir, "keys", s.index.Load().Count())
	return firstErr
}

// Epoch returns the current active log epoch.
func (s *Store) Epoch() uint64 {
	return s.epoch.Load()
}

// Keys returns the number of indexed keys, tombstones included.
func (s *Store) Keys() int {
	return s.index.Load().Count()
}
