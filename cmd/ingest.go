package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alvolt/membank/internal/app"
	"github.com/alvolt/membank/internal/config"
	"github.com/alvolt/membank/internal/ingest"
)

// runIngest walks the project tree once and indexes every eligible file.
func runIngest() error {
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

	fmt.Printf("Indexing %s\n", cfg.ProjectRoot)

	pipeline := ingest.New(a.IngestGateway, a.Artifacts, ingest.Options{
		Extensions:   cfg.ExtensionSet(),
		IgnoreDirs:   cfg.IgnoreSet(),
		MaxFileChars: cfg.MaxFileChars,
		Progress: func(r ingest.Result) {
			fmt.Printf("\rindexed %d  skipped %d  failed %d", r.Ingested, r.Skipped, r.Failed)
		},
	}, slog.Default())

	result, err := pipeline.Run(ctx, os.DirFS(cfg.ProjectRoot))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("ingest aborted: %w", err)
	}

	fmt.Printf("Done: %d indexed, %d skipped, %d failed in %s\n",
		result.Ingested, result.Skipped, result.Failed, result.Duration.Round(time.Millisecond))
	return nil
}
