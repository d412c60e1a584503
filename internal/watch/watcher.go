// Package watch keeps the artifact store live-consistent with file edits.
//
// A Watcher subscribes to filesystem notifications for a project tree and
// re-runs the single-file upsert path on every create or write of an
// eligible file. Deletions are deliberately not propagated: a removed
// file's artifact stays until the next edit of that path or a full
// re-ingest. Events are handled one at a time; a slow embedding call
// delays the next event rather than racing it.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/alvolt/membank/internal/artifact"
)

const (
	readAttempts     = 3
	defaultReadDelay = 500 * time.Millisecond
)

// Embedder turns text into a vector; false means absent (rejected or
// provider failure) and the event is dropped.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, bool)
}

// Upserter persists one artifact, replacing any prior row for its path.
type Upserter interface {
	Upsert(ctx context.Context, a artifact.Artifact) error
}

// Options configures a Watcher.
type Options struct {
	// Root is the project root; stored paths are relative to it.
	Root string

	// Extensions holds lowercase file extensions (with leading dot) that
	// trigger a sync.
	Extensions map[string]bool

	// IgnoreDirs holds directory base names; an event whose relative path
	// contains one of them as a component is discarded.
	IgnoreDirs map[string]bool

	// MaxFileChars is the upper bound on file size; larger files are
	// discarded like the ingest walk does.
	MaxFileChars int

	// ReadDelay is the pause between read attempts on a locked or
	// half-written file. Zero means the default.
	ReadDelay time.Duration
}

// Watcher mirrors live file edits into the artifact store.
type Watcher struct {
	gateway Embedder
	store   Upserter
	opts    Options
	logger  *slog.Logger

	// readFile is swappable so tests can simulate transient read failures
	// without real file locking.
	readFile func(name string) ([]byte, error)
}

// New creates a Watcher. logger may be nil.
func New(gateway Embedder, store Upserter, opts Options, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ReadDelay == 0 {
		opts.ReadDelay = defaultReadDelay
	}
	return &Watcher{
		gateway:  gateway,
		store:    store,
		opts:     opts,
		logger:   logger,
		readFile: os.ReadFile,
	}
}

// Run watches the project tree until ctx is cancelled. Events are handled
// sequentially; per-event failures are logged and discarded, never fatal.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating filesystem watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addRecursive(fsw, w.opts.Root); err != nil {
		return fmt.Errorf("registering watch tree: %w", err)
	}

	w.logger.Info("watching for changes", "root", w.opts.Root)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.dispatch(ctx, fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// addRecursive registers root and every non-ignored subdirectory. New
// directories created later are picked up by dispatch.
func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.opts.IgnoreDirs[d.Name()] {
			return fs.SkipDir
		}
		return fsw.Add(path)
	})
}

func (w *Watcher) dispatch(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		// Remove and Rename are deliberately unwired; see package doc.
		return
	}

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.opts.IgnoreDirs[filepath.Base(event.Name)] {
				if err := w.addRecursive(fsw, event.Name); err != nil {
					w.logger.Warn("adding new directory to watch", "path", event.Name, "error", err)
				}
				// Files written into the directory before the watch was
				// registered produced no events; sync them now.
				w.syncTree(ctx, event.Name)
			}
			return
		}
	}

	w.handleEvent(ctx, event.Name)
}

// syncTree runs the single-file sync over every file already present under
// root. Ineligible paths are filtered by handleEvent; walk errors are logged
// and skipped.
func (w *Watcher) syncTree(ctx context.Context, root string) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.logger.Warn("scanning new directory", "path", path, "error", walkErr)
			return nil
		}
		if d.IsDir() {
			if path != root && w.opts.IgnoreDirs[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		w.handleEvent(ctx, path)
		return nil
	})
	if err != nil {
		w.logger.Warn("scanning new directory", "path", root, "error", err)
	}
}

// handleEvent syncs one file path into the store. Every failure mode is a
// discard: transient reads, trivial content, provider absence, and store
// errors all leave the previous artifact in place.
func (w *Watcher) handleEvent(ctx context.Context, absPath string) {
	rel, ok := w.eligiblePath(absPath)
	if !ok {
		return
	}

	content, ok := w.readWithRetry(ctx, absPath)
	if !ok {
		w.logger.Debug("discarding event after empty reads", "path", rel)
		return
	}
	if len([]rune(content)) > w.opts.MaxFileChars {
		w.logger.Debug("discarding oversize file", "path", rel)
		return
	}

	embedding, ok := w.gateway.Embed(ctx, content)
	if !ok {
		w.logger.Debug("discarding unembeddable content", "path", rel)
		return
	}

	if err := w.store.Upsert(ctx, artifact.Artifact{
		Path:      rel,
		Content:   content,
		Embedding: embedding,
		Metadata:  map[string]string{"source": "auto_sync"},
	}); err != nil {
		w.logger.Warn("sync upsert failed", "path", rel, "error", err)
		return
	}

	w.logger.Info("synced", "path", rel)
}

// eligiblePath converts an absolute event path to a slash-separated
// project-relative path and applies the ignore and extension filters.
func (w *Watcher) eligiblePath(absPath string) (string, bool) {
	rel, err := filepath.Rel(w.opts.Root, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)

	for _, part := range strings.Split(rel, "/") {
		if w.opts.IgnoreDirs[part] {
			return "", false
		}
	}
	if !w.opts.Extensions[strings.ToLower(filepath.Ext(rel))] {
		return "", false
	}
	return rel, true
}

// readWithRetry tolerates the common race where an editor's save handle
// briefly locks the file or a write is half-flushed: a failed or empty
// read is retried after a short pause, up to three attempts total.
func (w *Watcher) readWithRetry(ctx context.Context, absPath string) (string, bool) {
	for attempt := 1; attempt <= readAttempts; attempt++ {
		data, err := w.readFile(absPath)
		if err == nil && strings.TrimSpace(string(data)) != "" {
			return string(data), true
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			w.logger.Debug("read attempt failed", "path", absPath, "attempt", attempt, "error", err)
		}
		if attempt < readAttempts {
			select {
			case <-ctx.Done():
				return "", false
			case <-time.After(w.opts.ReadDelay):
			}
		}
	}
	return "", false
}
