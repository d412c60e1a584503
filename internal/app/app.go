// Package app wires the application together: configuration, database,
// genkit, embedding gateways, stores, and the retrieval service.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alvolt/membank/internal/agent"
	"github.com/alvolt/membank/internal/artifact"
	"github.com/alvolt/membank/internal/config"
	"github.com/alvolt/membank/internal/embed"
	"github.com/alvolt/membank/internal/episode"
	"github.com/alvolt/membank/internal/recall"
)

// App is the application container. Fields are populated by Setup and
// released by Close.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Artifacts *artifact.Store
	Episodes  *episode.Store
	Recall    *recall.Service

	// IngestGateway enforces the stricter minimum-length policy of the
	// batch walk; SyncGateway and QueryGateway share the laxer one used
	// for live edits and queries. All three share one rate limiter, since
	// the provider quota is per process, not per caller.
	IngestGateway *embed.Gateway
	SyncGateway   *embed.Gateway
	QueryGateway  *embed.Gateway

	otelCleanup func()
}

// NewSession creates an interactive agent session over the app's memory.
func (a *App) NewSession() *agent.Session {
	return agent.NewSession(a.Genkit, a.Config.ChatModel, a.QueryGateway, a.Episodes, a.Recall, a.Config.TopK, a.Logger)
}

// Close releases all resources in reverse setup order. Safe to call on a
// partially initialized App.
func (a *App) Close() error {
	a.logger().Info("shutting down")

	if a.DBPool != nil {
		a.DBPool.Close()
		a.logger().Debug("database pool closed")
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}

func (a *App) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
