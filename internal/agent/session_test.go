package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alvolt/membank/internal/episode"
	"github.com/alvolt/membank/internal/log"
	"github.com/alvolt/membank/internal/recall"
)

type mockGateway struct {
	absent bool
}

func (m *mockGateway) Embed(context.Context, string) ([]float32, bool) {
	if m.absent {
		return nil, false
	}
	return []float32{0.1, 0.2}, true
}

type mockAppender struct {
	err      error
	appended []episode.Episode
}

func (m *mockAppender) Append(_ context.Context, role episode.Role, content string, _ []float32) error {
	if m.err != nil {
		return m.err
	}
	m.appended = append(m.appended, episode.Episode{Role: role, Content: content})
	return nil
}

func newTestSession(gateway *mockGateway, appender *mockAppender, rec Recaller) *Session {
	return NewSession(nil, "test-model", gateway, appender, rec, 5, log.NewNop())
}

func TestSession_Turn(t *testing.T) {
	ctx := context.Background()

	t.Run("records both turns and augments the prompt with recall", func(t *testing.T) {
		appender := &mockAppender{}
		rec := &mockRecaller{episodeRecall: recall.EpisodeRecall{Matches: []recall.EpisodeMatch{
			{Role: episode.RoleAssistant, Content: "the server listens on 8080"},
		}}}
		s := newTestSession(&mockGateway{}, appender, rec)

		var gotPrompt string
		s.generate = func(_ context.Context, prompt string) (string, error) {
			gotPrompt = prompt
			return "it is port 8080", nil
		}

		reply, err := s.Turn(ctx, "which port again?")
		if err != nil {
			t.Fatalf("Turn() = %v", err)
		}
		if reply != "it is port 8080" {
			t.Errorf("reply = %q", reply)
		}
		if !strings.Contains(gotPrompt, "the server listens on 8080") {
			t.Errorf("prompt missing recalled excerpt: %q", gotPrompt)
		}
		if !strings.HasSuffix(gotPrompt, "which port again?") {
			t.Errorf("prompt must end with the live input: %q", gotPrompt)
		}

		if len(appender.appended) != 2 {
			t.Fatalf("appended = %d episodes, want 2", len(appender.appended))
		}
		if appender.appended[0].Role != episode.RoleUser || appender.appended[1].Role != episode.RoleAssistant {
			t.Errorf("roles = %v, %v", appender.appended[0].Role, appender.appended[1].Role)
		}
		if appender.appended[1].Content != "it is port 8080" {
			t.Errorf("assistant episode = %q", appender.appended[1].Content)
		}
	})

	t.Run("empty recall leaves the prompt bare", func(t *testing.T) {
		s := newTestSession(&mockGateway{}, &mockAppender{}, &mockRecaller{})
		var gotPrompt string
		s.generate = func(_ context.Context, prompt string) (string, error) {
			gotPrompt = prompt
			return "ok", nil
		}

		if _, err := s.Turn(ctx, "hello there"); err != nil {
			t.Fatalf("Turn() = %v", err)
		}
		if gotPrompt != "hello there" {
			t.Errorf("prompt = %q, want bare input", gotPrompt)
		}
	})

	t.Run("recall failure degrades to a bare prompt", func(t *testing.T) {
		rec := &mockRecaller{episodeErr: errors.New("connection lost")}
		s := newTestSession(&mockGateway{}, &mockAppender{}, rec)
		var gotPrompt string
		s.generate = func(_ context.Context, prompt string) (string, error) {
			gotPrompt = prompt
			return "ok", nil
		}

		if _, err := s.Turn(ctx, "hello there"); err != nil {
			t.Fatalf("Turn() = %v", err)
		}
		if gotPrompt != "hello there" {
			t.Errorf("prompt = %q, want bare input", gotPrompt)
		}
	})

	t.Run("unembeddable input still gets a reply", func(t *testing.T) {
		appender := &mockAppender{}
		s := newTestSession(&mockGateway{absent: true}, appender, &mockRecaller{})
		s.generate = func(context.Context, string) (string, error) { return "ok", nil }

		if _, err := s.Turn(ctx, "hi"); err != nil {
			t.Fatalf("Turn() = %v", err)
		}
		if len(appender.appended) != 0 {
			t.Errorf("appended = %d episodes, want 0", len(appender.appended))
		}
	})

	t.Run("episode store failure does not abort the turn", func(t *testing.T) {
		appender := &mockAppender{err: errors.New("connection lost")}
		s := newTestSession(&mockGateway{}, appender, &mockRecaller{})
		s.generate = func(context.Context, string) (string, error) { return "ok", nil }

		reply, err := s.Turn(ctx, "hello there")
		if err != nil || reply != "ok" {
			t.Fatalf("Turn() = %q, %v", reply, err)
		}
	})

	t.Run("model failure is the turn's only error", func(t *testing.T) {
		appender := &mockAppender{}
		s := newTestSession(&mockGateway{}, appender, &mockRecaller{})
		genErr := errors.New("model overloaded")
		s.generate = func(context.Context, string) (string, error) { return "", genErr }

		_, err := s.Turn(ctx, "hello there")
		if !errors.Is(err, genErr) {
			t.Fatalf("Turn() = %v, want wrapped model error", err)
		}
		// The user's turn is still recorded; only the reply is lost.
		if len(appender.appended) != 1 {
			t.Errorf("appended = %d episodes, want 1", len(appender.appended))
		}
	})
}
