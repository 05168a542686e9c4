package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// FileLock provides exclusive file locking using flock(2). It is safe for
// coordination between multiple processes. The lock is automatically
// released when the process exits or crashes.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock creates a new file lock at the given path. The lock file and
// its parent directories will be created if they don't exist.
func NewFileLock(path string) *FileLock {
	return &FileLock{
		path: path,
	}
}

// TryLock attempts to acquire the exclusive lock without blocking. Returns
// true if the lock was acquired, false if it would block. An error is
// returned only for unexpected failures (not for lock contention).
func (l *FileLock) TryLock() (bool, error) {
	if err := l.ensureFileExists(); err != nil {
		return false, err
	}

	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		if errors.Is(err, syscall.EWOULDBLOCK) {
			// Lock is held by another process - close our file handle
			_ = l.file.Close()
			l.file = nil
			return false, nil
		}
		// Unexpected error
		_ = l.file.Close()
		l.file = nil
		return false, fmt.Errorf("flock failed: %w", err)
	}

	return true, nil
}

// Unlock releases the lock. It is safe to call Unlock on an unlocked
// FileLock (no-op).
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}

	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if err != nil {
		return fmt.Errorf("flock unlock failed: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("close failed: %w", closeErr)
	}

	return nil
}

// ensureFileExists creates the lock file and its parent directories if needed.
func (l *FileLock) ensureFileExists() error {
	if l.file != nil {
		return nil // Already open
	}

	// Create parent directories
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	// Open or create the lock file
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	l.file = file
	return nil
}
