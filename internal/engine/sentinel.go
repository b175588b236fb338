package engine

import (
	"fmt"
	"os"
	"path/filepath"
)

// SentinelFile records which engine kind owns a data directory.
const SentinelFile = ".engine"

const sentinelPerm = 0o600

// ClaimDir writes or verifies the engine sentinel in dir.
//
// On first open the sentinel is created with the given kind. On every
// later open the recorded kind must match, otherwise ErrWrongEngine.
func ClaimDir(dir string, kind Kind) error {
	path := filepath.Join(dir, SentinelFile)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte(kind), sentinelPerm); err != nil {
			return fmt.Errorf("write engine sentinel: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read engine sentinel: %w", err)
	}

	if Kind(data) != kind {
		return fmt.Errorf("%w: directory holds %q, requested %q", ErrWrongEngine, data, kind)
	}
	return nil
}
