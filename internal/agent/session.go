// Package agent runs the conversational session loop over the memory
// bank: every turn is recorded as an episode, related past turns are
// recalled into the prompt, and the model answers with the memory tools
// at its disposal.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/alvolt/membank/internal/episode"
)

const systemPrompt = `You are a coding assistant with a persistent memory bank for this project.
You have tools to search the indexed codebase, read stored file contents, and recall past conversations.
Prefer consulting the memory bank over guessing: search before you assert facts about the project.
Answer concisely in markdown.`

// maxToolTurns bounds the tool-call loop within a single user turn.
const maxToolTurns = 5

// Embedder turns text into a vector; false means absent.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, bool)
}

// EpisodeAppender records one turn of dialogue.
type EpisodeAppender interface {
	Append(ctx context.Context, role episode.Role, content string, embedding []float32) error
}

// Session is one interactive conversation. Not safe for concurrent turns;
// the loop is strictly sequential.
type Session struct {
	g        *genkit.Genkit
	model    string
	gateway  Embedder
	episodes EpisodeAppender
	recall   Recaller
	topK     int
	logger   *slog.Logger

	// generate is swappable so tests can run turns without a provider.
	generate func(ctx context.Context, prompt string) (string, error)
}

// NewSession creates a Session. logger may be nil.
func NewSession(g *genkit.Genkit, model string, gateway Embedder, episodes EpisodeAppender, rec Recaller, topK int, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		g:        g,
		model:    model,
		gateway:  gateway,
		episodes: episodes,
		recall:   rec,
		topK:     topK,
		logger:   logger,
	}
	s.generate = func(ctx context.Context, prompt string) (string, error) {
		response, err := genkit.Generate(ctx, s.g,
			ai.WithModelName(s.model),
			ai.WithSystem(systemPrompt),
			ai.WithMessages(ai.NewUserMessage(ai.NewTextPart(prompt))),
			ai.WithTools(lookupToolRefs(s.g)...),
			ai.WithMaxTurns(maxToolTurns),
		)
		if err != nil {
			return "", err
		}
		return response.Text(), nil
	}
	return s
}

// Turn runs one full exchange: record the user's turn, recall related past
// conversation, generate a reply with the memory tools available, and
// record the reply. Memory failures degrade the turn (logged, recall
// skipped, episode lost) but never abort it; only a failed model call is
// an error.
func (s *Session) Turn(ctx context.Context, userInput string) (string, error) {
	s.record(ctx, episode.RoleUser, userInput)

	prompt := userInput
	past, err := s.recall.Episodes(ctx, userInput, s.topK)
	if err != nil {
		s.logger.Warn("episode recall failed, continuing without memory", "error", err)
	} else if excerpt := past.TranscriptExcerpt(); excerpt != "" {
		prompt = excerpt + "\n\n" + userInput
	}

	reply, err := s.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generating reply: %w", err)
	}

	s.record(ctx, episode.RoleAssistant, reply)
	return reply, nil
}

// record embeds and appends one episode. A turn that cannot be embedded
// or stored is dropped with a log line; losing one memory is cheaper than
// failing the conversation.
func (s *Session) record(ctx context.Context, role episode.Role, content string) {
	embedding, ok := s.gateway.Embed(ctx, content)
	if !ok {
		s.logger.Debug("episode not embeddable, skipping record", "role", role)
		return
	}
	if err := s.episodes.Append(ctx, role, content, embedding); err != nil {
		s.logger.Warn("recording episode failed", "role", role, "error", err)
	}
}
