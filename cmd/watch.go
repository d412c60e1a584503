package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/alvolt/membank/internal/app"
	"github.com/alvolt/membank/internal/config"
	"github.com/alvolt/membank/internal/watch"
)

// runWatch follows live file edits until interrupted.
func runWatch() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	lock, err := acquireWriterLock()
	if err != nil {
		return err
	}
	defer releaseWriterLock(lock)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	fmt.Printf("Watching %s (Ctrl+C to stop)\n", cfg.ProjectRoot)

	watcher := watch.New(a.SyncGateway, a.Artifacts, watch.Options{
		Root:         cfg.ProjectRoot,
		Extensions:   cfg.ExtensionSet(),
		IgnoreDirs:   cfg.IgnoreSet(),
		MaxFileChars: cfg.MaxFileChars,
	}, slog.Default())

	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watcher stopped: %w", err)
	}

	fmt.Println("Watcher stopped.")
	return nil
}
