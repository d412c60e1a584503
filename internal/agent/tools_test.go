package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/alvolt/membank/internal/artifact"
	"github.com/alvolt/membank/internal/recall"
)

type mockRecaller struct {
	artifactRecall recall.ArtifactRecall
	artifactErr    error
	episodeRecall  recall.EpisodeRecall
	episodeErr     error
}

func (m *mockRecaller) Artifacts(context.Context, string, int) (recall.ArtifactRecall, error) {
	return m.artifactRecall, m.artifactErr
}

func (m *mockRecaller) Episodes(context.Context, string, int) (recall.EpisodeRecall, error) {
	return m.episodeRecall, m.episodeErr
}

type mockReader struct {
	artifact artifact.Artifact
	err      error
}

func (m *mockReader) GetByPathFragment(context.Context, string) (artifact.Artifact, error) {
	return m.artifact, m.err
}

func TestRegisterTools(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)

	RegisterTools(g, &mockRecaller{}, &mockReader{}, 5)

	for _, name := range toolNames {
		if genkit.LookupTool(g, name) == nil {
			t.Errorf("tool %q not registered", name)
		}
	}
	if refs := lookupToolRefs(g); len(refs) != len(toolNames) {
		t.Errorf("len(refs) = %d, want %d", len(refs), len(toolNames))
	}
}

func TestSearchCodebase(t *testing.T) {
	ctx := context.Background()

	t.Run("lists ranked paths", func(t *testing.T) {
		rec := &mockRecaller{artifactRecall: recall.ArtifactRecall{Matches: []recall.ArtifactMatch{
			{Path: "src/db.js", Relevance: 0.91},
			{Path: "src/pool.js", Relevance: 0.74},
		}}}

		out, err := searchCodebase(ctx, rec, 5, "connection pooling")
		if err != nil {
			t.Fatalf("searchCodebase() = %v", err)
		}
		if !strings.Contains(out, "src/db.js (relevance 0.91)") || !strings.Contains(out, "src/pool.js") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("absence is a message, not an error", func(t *testing.T) {
		out, err := searchCodebase(ctx, &mockRecaller{}, 5, "anything")
		if err != nil {
			t.Fatalf("searchCodebase() = %v", err)
		}
		if !strings.Contains(out, "No indexed files") {
			t.Errorf("output = %q", out)
		}

		out, err = searchCodebase(ctx, &mockRecaller{artifactRecall: recall.ArtifactRecall{NoVector: true}}, 5, "x")
		if err != nil {
			t.Fatalf("searchCodebase() = %v", err)
		}
		if !strings.Contains(out, "too short") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("store failure is an error", func(t *testing.T) {
		rec := &mockRecaller{artifactErr: errors.New("connection lost")}
		if _, err := searchCodebase(ctx, rec, 5, "anything"); err == nil {
			t.Fatal("want error on store failure")
		}
	})
}

func TestReadStoredFile(t *testing.T) {
	ctx := context.Background()

	t.Run("returns stored content", func(t *testing.T) {
		reader := &mockReader{artifact: artifact.Artifact{Path: "src/main.js", Content: "console.log('hi')"}}

		out, err := readStoredFile(ctx, reader, "main.js")
		if err != nil {
			t.Fatalf("readStoredFile() = %v", err)
		}
		if !strings.Contains(out, "src/main.js") || !strings.Contains(out, "console.log('hi')") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("not found is a message, not an error", func(t *testing.T) {
		reader := &mockReader{err: artifact.ErrNotFound}

		out, err := readStoredFile(ctx, reader, "missing.js")
		if err != nil {
			t.Fatalf("readStoredFile() = %v", err)
		}
		if !strings.Contains(out, "No indexed file") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("store failure is an error", func(t *testing.T) {
		reader := &mockReader{err: errors.New("connection lost")}
		if _, err := readStoredFile(ctx, reader, "main.js"); err == nil {
			t.Fatal("want error on store failure")
		}
	})
}

func TestRecallEpisodesTool(t *testing.T) {
	ctx := context.Background()

	t.Run("returns transcript excerpt", func(t *testing.T) {
		rec := &mockRecaller{episodeRecall: recall.EpisodeRecall{Matches: []recall.EpisodeMatch{
			{Role: "user", Content: "what port does the server use?"},
		}}}

		out, err := recallEpisodes(ctx, rec, 5, "server port")
		if err != nil {
			t.Fatalf("recallEpisodes() = %v", err)
		}
		if !strings.Contains(out, "[user]: what port does the server use?") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("no recall is a message", func(t *testing.T) {
		out, err := recallEpisodes(ctx, &mockRecaller{}, 5, "anything")
		if err != nil {
			t.Fatalf("recallEpisodes() = %v", err)
		}
		if !strings.Contains(out, "No related past conversation") {
			t.Errorf("output = %q", out)
		}
	})
}
