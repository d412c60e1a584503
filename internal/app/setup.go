package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"

	"github.com/alvolt/membank/db"
	"github.com/alvolt/membank/internal/agent"
	"github.com/alvolt/membank/internal/artifact"
	"github.com/alvolt/membank/internal/config"
	"github.com/alvolt/membank/internal/database"
	"github.com/alvolt/membank/internal/embed"
	"github.com/alvolt/membank/internal/episode"
	"github.com/alvolt/membank/internal/recall"
)

// Setup initializes the application. On any error everything already
// initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	a.DBPool = pool

	g, embedder, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g
	a.Embedder = embedder

	// One limiter for all gateways; the provider quota is per process.
	limiter := rate.NewLimiter(rate.Limit(cfg.EmbedRate), cfg.EmbedBurst)
	a.IngestGateway = embed.New(embedder, embed.Policy{
		MinChars:   cfg.IngestMinChars,
		CharBudget: cfg.EmbedCharBudget,
	}, limiter, logger)
	a.SyncGateway = embed.New(embedder, embed.Policy{
		MinChars:   cfg.QueryMinChars,
		CharBudget: cfg.EmbedCharBudget,
	}, limiter, logger)
	a.QueryGateway = embed.New(embedder, embed.Policy{
		MinChars:   cfg.QueryMinChars,
		CharBudget: cfg.EmbedCharBudget,
	}, limiter, logger)

	a.Artifacts = artifact.New(artifact.NewQueries(pool), logger)
	a.Episodes = episode.New(episode.NewQueries(pool), logger)
	a.Recall = recall.New(a.QueryGateway, a.Artifacts, a.Episodes, logger)

	agent.RegisterTools(g, a.Recall, a.Artifacts, cfg.TopK)

	return a, nil
}

// provideGenkit initializes genkit with the Gemini plugin and looks up
// the configured embedder.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, ai.Embedder, error) {
	// The plugin reads GEMINI_API_KEY from the environment; surface a key
	// loaded from the config file the same way. SAFETY: called once during
	// startup before any goroutines are spawned.
	if os.Getenv("GEMINI_API_KEY") == "" && cfg.GeminiAPIKey != "" {
		_ = os.Setenv("GEMINI_API_KEY", cfg.GeminiAPIKey)
	}

	g := genkit.Init(ctx,
		genkit.WithPlugins(&googlegenai.GoogleAI{}),
	)
	if g == nil {
		return nil, nil, errors.New("initializing genkit with gemini provider")
	}

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	return g, embedder, nil
}

// provideOtelShutdown wires an OTLP HTTP trace exporter into genkit's
// tracer provider when an endpoint is configured. Tracing is optional;
// exporter failures disable it with a warning rather than failing setup.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)
	logger.Debug("tracing enabled", "endpoint", cfg.OTLPEndpoint)

	shutdown := tracing.TracerProvider().Shutdown
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}
