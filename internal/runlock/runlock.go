package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ErrAlreadyRunning signals that another pipeline run holds the lock.
var ErrAlreadyRunning = errors.New("another run is already in progress")

// Lock is a cross-process mutual-exclusion guard over one pipeline
// execution, backed by a marker file. The marker's modification time is the
// authority for staleness: markers older than the timeout are presumed
// abandoned by a crashed run and reclaimed.
type Lock struct {
	path    string
	timeout time.Duration
}

// New builds a lock over the given marker path. A non-positive timeout
// falls back to one hour.
func New(path string, timeout time.Duration) *Lock {
	if timeout <= 0 {
		timeout = time.Hour
	}
	return &Lock{path: path, timeout: timeout}
}

// Acquire takes the lock or fails with ErrAlreadyRunning when a live marker
// exists. Stale markers are reclaimed unconditionally. On success a fresh
// marker recording the current PID is written.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}

	info, err := os.Stat(l.path)
	switch {
	case err == nil:
		age := time.Since(info.ModTime())
		if age < l.timeout {
			return fmt.Errorf("%w (lock age %s)", ErrAlreadyRunning, age.Round(time.Second))
		}
		// stale lock
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("reclaim stale lock: %w", err)
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("stat lock: %w", err)
	}

	if err := os.WriteFile(l.path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("write lock: %w", err)
	}
	return nil
}

// Release removes the marker. Releasing an already-released lock is a no-op.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock: %w", err)
	}
	return nil
}
