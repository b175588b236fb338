package kvstore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kvslab/kvs/pkg/cmap"
)

// compactLocked rewrites all live records into a new log file with the
// next epoch and retires the old one. Caller holds s.mu, so no writes
// race the rewrite; readers keep serving from the old index until the
// new one is published.
//
// The new file is built under a temporary name and renamed into place
// before anything is published or deleted, so a crash at any point
// leaves the directory recoverable: the highest complete epoch wins.
func (s *Store) compactLocked() error {
	oldEpoch := s.epoch.Load()
	newEpoch := oldEpoch + 1
	snapshot := s.index.Load().Items()

	tmpPath := logPath(s.cfg.Dir, newEpoch) + tmpSuffix
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, logFilePerm)
	if err != nil {
		return fmt.Errorf("create compaction output: %w", err)
	}
	defer func() {
		if file != nil {
			file.Close()
			os.Remove(tmpPath)
		}
	}()

	rc := s.readers.Get().(*readerCache)
	defer s.readers.Put(rc)

	w := bufio.NewWriter(file)
	index := cmap.New[location]()
	var offset int64
	var dropped int

	for _, item := range snapshot {
		data, err := rc.readAt(item.Value)
		if err != nil {
			return fmt.Errorf("read record for %q: %w", item.Key, err)
		}

		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			return fmt.Errorf("decode record for %q: %w", item.Key, err)
		}
		// Tombstones need no successor once every older file is gone:
		// absence of an index entry already means absent.
		if cmd.op == opRm {
			dropped++
			continue
		}

		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write compacted record: %w", err)
		}
		index.Set(item.Key, location{epoch: newEpoch, offset: offset, length: int64(len(data))})
		offset += int64(len(data))
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush compaction output: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync compaction output: %w", err)
	}
	if err := file.Close(); err != nil {
		file = nil
		return fmt.Errorf("close compaction output: %w", err)
	}
	file = nil

	if err := os.Rename(tmpPath, logPath(s.cfg.Dir, newEpoch)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("publish compacted log: %w", err)
	}

	active, err := os.OpenFile(logPath(s.cfg.Dir, newEpoch), os.O_WRONLY|os.O_APPEND, logFilePerm)
	if err != nil {
		return fmt.Errorf("open compacted log for append: %w", err)
	}
	if _, err := active.Seek(0, io.SeekEnd); err != nil {
		active.Close()
		return fmt.Errorf("seek compacted log: %w", err)
	}

	// Publish: new index first, then epoch, then swap the writer. From
	// here readers resolve into the new file only.
	s.index.Store(index)
	s.epoch.Store(newEpoch)
	s.active.Close()
	s.active = active
	s.activeSize = offset
	s.redundant = 0

	// Old files go away immediately. In-flight readers that already
	// opened the old epoch keep reading the unlinked inode; readers
	// that lose the open race get ENOENT and retry via the new index.
	if err := removeStaleFiles(s.cfg.Dir, newEpoch); err != nil {
		return err
	}

	s.metrics.observeCompaction(index.Count(), offset)
	s.logger.Info("compaction complete",
		"epoch", newEpoch,
		"live_keys", index.Count(),
		"tombstones_dropped", dropped,
		"log_size", offset)

	return nil
}
