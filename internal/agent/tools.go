package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/alvolt/membank/internal/artifact"
	"github.com/alvolt/membank/internal/recall"
)

// toolNames is the single source of truth for registered tool names.
var toolNames = []string{
	"search_codebase",
	"read_file",
	"recall_episodes",
}

// Recaller is the slice of the retrieval service the tools and session
// loop need.
type Recaller interface {
	Artifacts(ctx context.Context, query string, k int) (recall.ArtifactRecall, error)
	Episodes(ctx context.Context, query string, k int) (recall.EpisodeRecall, error)
}

// ArtifactReader looks up a single stored artifact by path fragment.
type ArtifactReader interface {
	GetByPathFragment(ctx context.Context, fragment string) (artifact.Artifact, error)
}

// RegisterTools registers the memory tools with genkit. Dependencies are
// captured by closure. Tool outputs are plain text addressed to the
// model, so absence of memory is reported in words, never as an error the
// model would read as a tool failure.
func RegisterTools(g *genkit.Genkit, rec Recaller, reader ArtifactReader, topK int) {
	genkit.DefineTool(
		g, "search_codebase", "Search the project's indexed source files by semantic similarity and return the most relevant file paths",
		func(toolCtx *ai.ToolContext, input struct {
			Query string `json:"query" jsonschema_description:"What to look for in the codebase"`
		},
		) (string, error) {
			return searchCodebase(toolCtx.Context, rec, topK, input.Query)
		},
	)

	genkit.DefineTool(
		g, "read_file", "Read the stored content of a project file by its path or a fragment of it",
		func(toolCtx *ai.ToolContext, input struct {
			Path string `json:"path" jsonschema_description:"File path or path fragment, e.g. src/main.js or main.js"`
		},
		) (string, error) {
			return readStoredFile(toolCtx.Context, reader, input.Path)
		},
	)

	genkit.DefineTool(
		g, "recall_episodes", "Recall past conversation turns related to a topic",
		func(toolCtx *ai.ToolContext, input struct {
			Query string `json:"query" jsonschema_description:"Topic to recall past conversation about"`
		},
		) (string, error) {
			return recallEpisodes(toolCtx.Context, rec, topK, input.Query)
		},
	)
}

func searchCodebase(ctx context.Context, rec Recaller, topK int, query string) (string, error) {
	result, err := rec.Artifacts(ctx, query, topK)
	if err != nil {
		return "", fmt.Errorf("searching codebase: %w", err)
	}
	if result.NoVector {
		return "The query was too short to search with.", nil
	}
	if len(result.Matches) == 0 {
		return "No indexed files matched the query.", nil
	}

	var b strings.Builder
	b.WriteString("Most relevant files:\n")
	for _, m := range result.Matches {
		fmt.Fprintf(&b, "- %s (relevance %.2f)\n", m.Path, m.Relevance)
	}
	return b.String(), nil
}

func readStoredFile(ctx context.Context, reader ArtifactReader, path string) (string, error) {
	a, err := reader.GetByPathFragment(ctx, path)
	if errors.Is(err, artifact.ErrNotFound) {
		return fmt.Sprintf("No indexed file matches %q.", path), nil
	}
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return fmt.Sprintf("Content of %s:\n%s", a.Path, a.Content), nil
}

func recallEpisodes(ctx context.Context, rec Recaller, topK int, query string) (string, error) {
	result, err := rec.Episodes(ctx, query, topK)
	if err != nil {
		return "", fmt.Errorf("recalling episodes: %w", err)
	}
	if result.NoVector || len(result.Matches) == 0 {
		return "No related past conversation found.", nil
	}
	return result.TranscriptExcerpt(), nil
}

// lookupToolRefs resolves the registered tool names into refs for a
// generate call.
func lookupToolRefs(g *genkit.Genkit) []ai.ToolRef {
	refs := make([]ai.ToolRef, 0, len(toolNames))
	for _, name := range toolNames {
		if tool := genkit.LookupTool(g, name); tool != nil {
			refs = append(refs, tool)
		}
	}
	return refs
}
