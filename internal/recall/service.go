// Package recall serves similarity queries over both memory stores: the
// artifact mirror of the project tree and the episodic conversation log.
//
// A query is embedded once and ranked by the store; recall distinguishes
// three outcomes the caller must treat differently: matches, an explicit
// non-error absence (query too trivial to embed, or nothing stored yet),
// and a "memory unavailable" error when the store itself fails.
package recall

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alvolt/membank/internal/artifact"
	"github.com/alvolt/membank/internal/episode"
)

const previewRunes = 200

// Embedder turns a query into a vector; false means the query could not be
// embedded and recall reports explicit absence instead of an error.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, bool)
}

// ArtifactSearcher is the slice of the artifact store recall needs.
type ArtifactSearcher interface {
	QueryNearest(ctx context.Context, embedding []float32, k int) ([]artifact.Match, error)
}

// EpisodeSearcher is the slice of the episode store recall needs.
type EpisodeSearcher interface {
	QueryNearest(ctx context.Context, embedding []float32, k int) ([]episode.Match, error)
}

// ArtifactMatch is one ranked artifact hit. Relevance is 1 minus cosine
// distance; it can be negative for strongly dissimilar vectors.
type ArtifactMatch struct {
	Path      string
	Content   string
	Distance  float64
	Relevance float64
}

// ArtifactRecall is the outcome of one artifact query. NoVector reports
// that the query itself could not be embedded; an empty Matches slice with
// NoVector false means the store had nothing similar.
type ArtifactRecall struct {
	NoVector bool
	Matches  []ArtifactMatch
}

// EpisodeMatch is one ranked conversation turn.
type EpisodeMatch struct {
	Role      episode.Role
	Content   string
	Distance  float64
	Relevance float64
}

// EpisodeRecall is the outcome of one episode query.
type EpisodeRecall struct {
	NoVector bool
	Matches  []EpisodeMatch
}

// Service embeds queries and ranks them against both stores.
type Service struct {
	gateway   Embedder
	artifacts ArtifactSearcher
	episodes  EpisodeSearcher
	logger    *slog.Logger
}

// New creates a Service. logger may be nil.
func New(gateway Embedder, artifacts ArtifactSearcher, episodes EpisodeSearcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gateway: gateway, artifacts: artifacts, episodes: episodes, logger: logger}
}

// Artifacts returns up to k artifacts nearest to the query, most similar
// first. A store failure is an error; an unembeddable query is not.
func (s *Service) Artifacts(ctx context.Context, query string, k int) (ArtifactRecall, error) {
	vec, ok := s.gateway.Embed(ctx, query)
	if !ok {
		return ArtifactRecall{NoVector: true}, nil
	}

	matches, err := s.artifacts.QueryNearest(ctx, vec, k)
	if err != nil {
		return ArtifactRecall{}, fmt.Errorf("artifact memory unavailable: %w", err)
	}

	result := ArtifactRecall{Matches: make([]ArtifactMatch, 0, len(matches))}
	for _, m := range matches {
		result.Matches = append(result.Matches, ArtifactMatch{
			Path:      m.Path,
			Content:   m.Content,
			Distance:  m.Distance,
			Relevance: 1 - m.Distance,
		})
	}
	return result, nil
}

// Episodes returns up to k conversation turns nearest to the query, most
// similar first.
func (s *Service) Episodes(ctx context.Context, query string, k int) (EpisodeRecall, error) {
	vec, ok := s.gateway.Embed(ctx, query)
	if !ok {
		return EpisodeRecall{NoVector: true}, nil
	}

	matches, err := s.episodes.QueryNearest(ctx, vec, k)
	if err != nil {
		return EpisodeRecall{}, fmt.Errorf("episodic memory unavailable: %w", err)
	}

	result := EpisodeRecall{Matches: make([]EpisodeMatch, 0, len(matches))}
	for _, m := range matches {
		result.Matches = append(result.Matches, EpisodeMatch{
			Role:      m.Role,
			Content:   m.Content,
			Distance:  m.Distance,
			Relevance: 1 - m.Distance,
		})
	}
	return result, nil
}

// TranscriptExcerpt renders recalled turns as a prompt block: role-tagged
// lines with content previews, framed so the model can tell recalled
// memory apart from the live conversation. Empty recall renders to the
// empty string.
func (r EpisodeRecall) TranscriptExcerpt() string {
	if len(r.Matches) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("--- Relevant past conversation ---\n")
	for _, m := range r.Matches {
		fmt.Fprintf(&b, "- [%s]: %s\n", m.Role, preview(m.Content))
	}
	b.WriteString("--- End of past conversation ---")
	return b.String()
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewRunes {
		return content
	}
	return string(runes[:previewRunes]) + "..."
}
