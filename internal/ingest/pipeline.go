// Package ingest walks a project tree and mirrors every eligible source
// file into the artifact store as an embedded snapshot.
//
// The walk is a full re-scan: each run re-embeds and replaces every file it
// can read, and failures on individual files never abort the run. Files
// that vanished from disk are left in the store untouched.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/alvolt/membank/internal/artifact"
)

// Embedder turns text into a vector. The bool reports presence: false
// means the text was rejected or the provider failed, and the file is
// skipped rather than stored without an index entry.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, bool)
}

// Upserter persists one artifact, replacing any prior row for its path.
type Upserter interface {
	Upsert(ctx context.Context, a artifact.Artifact) error
}

// Options configures a walk.
type Options struct {
	// Extensions holds lowercase file extensions (with leading dot) that
	// are eligible for ingestion.
	Extensions map[string]bool

	// IgnoreDirs holds directory base names pruned before descent.
	IgnoreDirs map[string]bool

	// MaxFileChars is the upper bound on file size; larger files are
	// skipped entirely rather than truncated, since a truncated mirror is
	// worse than an honest gap.
	MaxFileChars int

	// Progress, when set, is called with the running tally after every
	// processed file.
	Progress func(Result)
}

// Result summarizes one run.
type Result struct {
	Ingested int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// Pipeline walks a file tree and upserts embedded artifacts.
type Pipeline struct {
	gateway Embedder
	store   Upserter
	opts    Options
	logger  *slog.Logger
}

// New creates a Pipeline. logger may be nil.
func New(gateway Embedder, store Upserter, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{gateway: gateway, store: store, opts: opts, logger: logger}
}

// Run walks fsys and ingests every eligible file. Per-file failures are
// counted and logged but do not stop the walk; only a broken walk or a
// cancelled context aborts the run. Paths are stored slash-separated and
// relative to the walk root.
func (p *Pipeline) Run(ctx context.Context, fsys fs.FS) (Result, error) {
	start := time.Now()
	var result Result

	err := fs.WalkDir(fsys, ".", func(filePath string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// An unreadable root means the whole run saw nothing; reporting
			// that as a clean empty result would be a lie.
			if filePath == "." {
				return fmt.Errorf("reading walk root: %w", walkErr)
			}
			// Deeper unreadable directories are logged and pruned, not fatal.
			p.logger.Warn("walk error", "path", filePath, "error", walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if p.opts.IgnoreDirs[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		if !p.opts.Extensions[strings.ToLower(path.Ext(filePath))] {
			return nil
		}

		switch p.ingestFile(ctx, fsys, filePath) {
		case outcomeIngested:
			result.Ingested++
		case outcomeSkipped:
			result.Skipped++
		case outcomeFailed:
			result.Failed++
		}
		if p.opts.Progress != nil {
			p.opts.Progress(result)
		}
		return nil
	})

	result.Duration = time.Since(start)
	if err != nil {
		return result, fmt.Errorf("walking project tree: %w", err)
	}

	p.logger.Info("ingest complete",
		"ingested", result.Ingested,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"duration", result.Duration)
	return result, nil
}

type outcome int

const (
	outcomeIngested outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (p *Pipeline) ingestFile(ctx context.Context, fsys fs.FS, filePath string) outcome {
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		p.logger.Warn("read failed", "path", filePath, "error", err)
		return outcomeFailed
	}

	content := string(data)
	if strings.TrimSpace(content) == "" {
		p.logger.Debug("skipping empty file", "path", filePath)
		return outcomeSkipped
	}
	if len([]rune(content)) > p.opts.MaxFileChars {
		p.logger.Debug("skipping oversize file", "path", filePath, "chars", len([]rune(content)))
		return outcomeSkipped
	}

	embedding, ok := p.gateway.Embed(ctx, content)
	if !ok {
		p.logger.Debug("skipping unembeddable file", "path", filePath)
		return outcomeSkipped
	}

	if err := p.store.Upsert(ctx, artifact.Artifact{
		Path:      filePath,
		Content:   content,
		Embedding: embedding,
		Metadata:  map[string]string{"source": "ingest"},
	}); err != nil {
		p.logger.Warn("upsert failed", "path", filePath, "error", err)
		return outcomeFailed
	}

	p.logger.Debug("ingested", "path", filePath)
	return outcomeIngested
}
