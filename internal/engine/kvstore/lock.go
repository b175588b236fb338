package kvstore

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/kvslab/kvs/internal/engine"
)

// LockFile guards a data directory against a second engine instance.
const LockFile = ".lock"

type dirLock struct {
	file *os.File
}

// acquireDirLock takes a non-blocking exclusive flock on dir's lock
// file. A held lock means another instance owns the directory.
func acquireDirLock(dir string) (*dirLock, error) {
	path := filepath.Join(dir, LockFile)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, logFilePerm)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %s", engine.ErrLocked, dir)
	}
	return &dirLock{file: file}, nil
}

func (l *dirLock) release() error {
	if l.file == nil {
		return nil
	}
	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	err := l.file.Close()
	l.file = nil
	return err
}
