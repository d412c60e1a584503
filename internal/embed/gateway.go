// Package embed wraps the remote embedding provider behind a gateway that
// enforces length policy, deterministic truncation and failure containment.
//
// The gateway never returns an error: an absent vector means "skip this
// item" and every call site treats it that way. Provider failures are
// logged, not propagated, so a flaky embedding API degrades ingestion and
// recall instead of crashing them.
package embed

import (
	"context"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"
)

// Policy holds the per-gateway length knobs. Ingestion and query paths use
// different minimums (10 and 5 chars by default), so each constructs its own
// gateway around the shared embedder.
type Policy struct {
	// MinChars is the minimum input length; shorter text is rejected
	// without a remote call.
	MinChars int

	// CharBudget is the maximum input length; longer text is truncated to
	// a deterministic prefix before the remote call.
	CharBudget int
}

// Gateway wraps an ai.Embedder with policy enforcement and pacing.
type Gateway struct {
	embedder ai.Embedder
	policy   Policy
	limiter  *rate.Limiter // nil disables pacing
	logger   *slog.Logger
}

// New creates a Gateway. limiter may be nil to disable pacing; batch callers
// (ingestion, watcher) pass a shared token bucket keyed to the provider
// quota.
func New(embedder ai.Embedder, policy Policy, limiter *rate.Limiter, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		embedder: embedder,
		policy:   policy,
		limiter:  limiter,
		logger:   logger,
	}
}

// Embed converts text to a vector. The second return value reports whether
// a vector was produced; false means the input was below the minimum length
// or the provider call failed. Callers must treat false as "skip", never as
// a fatal condition.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, bool) {
	if len([]rune(text)) < g.policy.MinChars {
		return nil, false
	}

	input := Truncate(text, g.policy.CharBudget)

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			g.logger.Debug("embedding pacing interrupted", "error", err)
			return nil, false
		}
	}

	resp, err := g.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(input, nil)},
	})
	if err != nil {
		g.logger.Warn("embedding call failed", "error", err, "input_chars", len(input))
		return nil, false
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		g.logger.Warn("embedding provider returned no vector", "input_chars", len(input))
		return nil, false
	}

	return resp.Embeddings[0].Embedding, true
}

// Truncate cuts text to at most budget runes. The cut is a plain prefix so
// repeated calls on unchanged content produce byte-identical provider input.
func Truncate(text string, budget int) string {
	if budget <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= budget {
		return text
	}
	return string(runes[:budget])
}
