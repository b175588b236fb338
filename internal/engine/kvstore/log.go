package kvstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Log file naming: <epoch>.log where epoch is a non-negative decimal
// integer. The highest epoch is the active file.
const (
	logSuffix = ".log"
	tmpSuffix = ".tmp"

	logFilePerm = 0o600
	dataDirPerm = 0o750
)

// location names one record's byte range within a log file.
type location struct {
	epoch  uint64
	offset int64
	length int64
}

func logFilename(epoch uint64) string {
	return fmt.Sprintf("%d%s", epoch, logSuffix)
}

func logPath(dir string, epoch uint64) string {
	return filepath.Join(dir, logFilename(epoch))
}

func parseLogFilename(name string) (uint64, bool) {
	base, ok := strings.CutSuffix(name, logSuffix)
	if !ok || base == "" {
		return 0, false
	}
	epoch, err := strconv.ParseUint(base, 10, 64)
	if err != nil {
		return 0, false
	}
	return epoch, true
}

// scanEpochs returns the epochs of all log files in dir, ascending.
func scanEpochs(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var epochs []uint64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if epoch, ok := parseLogFilename(e.Name()); ok {
			epochs = append(epochs, epoch)
		}
	}
	sort.Slice(epochs, func(i, j int) bool { return epochs[i] < epochs[j] })
	return epochs, nil
}

// removeStaleFiles deletes log files older than keep and any leftover
// temporary compaction output.
func removeStaleFiles(dir string, keep uint64) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read data dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, tmpSuffix) {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				return fmt.Errorf("remove %s: %w", name, err)
			}
			continue
		}
		if epoch, ok := parseLogFilename(name); ok && epoch < keep {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				return fmt.Errorf("remove %s: %w", name, err)
			}
		}
	}
	return nil
}
