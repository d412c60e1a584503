package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// acquireWriterLock takes the exclusive writer lock shared by ingest and
// watch. The store's replace semantics assume a single writer process;
// running both at once against the same store is unsupported, so the
// second writer fails fast instead of racing.
func acquireWriterLock() (*flock.Flock, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}

	dir := filepath.Join(home, ".membank")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, "writer.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring writer lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another ingest or watch process is already running (lock held: %s)", lock.Path())
	}
	return lock, nil
}

// releaseWriterLock unlocks, logging is left to the caller. Unlock errors
// are ignored; the lock dies with the process anyway.
func releaseWriterLock(lock *flock.Flock) {
	_ = lock.Unlock()
}
