// Package mcp exposes the memory bank over the Model Context Protocol so
// external MCP clients can search the artifact mirror and recall past
// conversation without going through the interactive session.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/alvolt/membank/internal/artifact"
	"github.com/alvolt/membank/internal/recall"
)

// Recaller is the slice of the retrieval service the MCP tools need.
type Recaller interface {
	Artifacts(ctx context.Context, query string, k int) (recall.ArtifactRecall, error)
	Episodes(ctx context.Context, query string, k int) (recall.EpisodeRecall, error)
}

// ArtifactReader looks up a single stored artifact by path fragment.
type ArtifactReader interface {
	GetByPathFragment(ctx context.Context, fragment string) (artifact.Artifact, error)
}

// Config holds MCP server configuration.
type Config struct {
	Name      string
	Version   string
	Recall    Recaller
	Artifacts ArtifactReader
	TopK      int
	Logger    *slog.Logger
}

// Server wraps the MCP SDK server around the memory bank.
type Server struct {
	mcpServer *mcp.Server
	recall    Recaller
	artifacts ArtifactReader
	topK      int
	logger    *slog.Logger
}

// SearchInput is the input schema for the similarity search tools.
type SearchInput struct {
	Query string `json:"query" jsonschema:"Text to search for by semantic similarity"`
}

// ReadFileInput is the input schema for the read_file tool.
type ReadFileInput struct {
	Path string `json:"path" jsonschema:"File path or path fragment, e.g. src/main.js"`
}

// NewServer creates an MCP server with the memory tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Recall == nil || cfg.Artifacts == nil {
		return nil, fmt.Errorf("recall service and artifact reader are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		recall:    cfg.Recall,
		artifacts: cfg.Artifacts,
		topK:      cfg.TopK,
		logger:    cfg.Logger,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}
	return s, nil
}

// Run serves MCP on the given transport until ctx is cancelled. Blocking.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

func (s *Server) registerTools() error {
	searchSchema, err := jsonschema.For[SearchInput](nil)
	if err != nil {
		return fmt.Errorf("schema for search tools: %w", err)
	}
	readSchema, err := jsonschema.For[ReadFileInput](nil)
	if err != nil {
		return fmt.Errorf("schema for read_file: %w", err)
	}

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "search_codebase",
		Description: "Search the project's indexed source files using semantic similarity. " +
			"Returns the most relevant file paths with relevance scores.",
		InputSchema: searchSchema,
	}, s.SearchCodebase)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "read_file",
		Description: "Read the stored content of an indexed project file. " +
			"Accepts a full path or a fragment; the shortest matching path wins.",
		InputSchema: readSchema,
	}, s.ReadFile)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "recall_episodes",
		Description: "Recall past conversation turns related to a topic using semantic similarity. " +
			"Returns role-tagged excerpts of the most relevant turns.",
		InputSchema: searchSchema,
	}, s.RecallEpisodes)

	return nil
}

// SearchCodebase handles the search_codebase MCP tool call.
func (s *Server) SearchCodebase(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, any, error) {
	result, err := s.recall.Artifacts(ctx, input.Query, s.topK)
	if err != nil {
		return nil, nil, fmt.Errorf("searching codebase: %w", err)
	}
	if result.NoVector {
		return textResult("The query was too short to search with."), nil, nil
	}
	if len(result.Matches) == 0 {
		return textResult("No indexed files matched the query."), nil, nil
	}

	var b strings.Builder
	b.WriteString("Most relevant files:\n")
	for _, m := range result.Matches {
		fmt.Fprintf(&b, "- %s (relevance %.2f)\n", m.Path, m.Relevance)
	}
	return textResult(b.String()), nil, nil
}

// ReadFile handles the read_file MCP tool call.
func (s *Server) ReadFile(ctx context.Context, _ *mcp.CallToolRequest, input ReadFileInput) (*mcp.CallToolResult, any, error) {
	a, err := s.artifacts.GetByPathFragment(ctx, input.Path)
	if errors.Is(err, artifact.ErrNotFound) {
		return textResult(fmt.Sprintf("No indexed file matches %q.", input.Path)), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading file: %w", err)
	}
	return textResult(fmt.Sprintf("Content of %s:\n%s", a.Path, a.Content)), nil, nil
}

// RecallEpisodes handles the recall_episodes MCP tool call.
func (s *Server) RecallEpisodes(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, any, error) {
	result, err := s.recall.Episodes(ctx, input.Query, s.topK)
	if err != nil {
		return nil, nil, fmt.Errorf("recalling episodes: %w", err)
	}
	if result.NoVector || len(result.Matches) == 0 {
		return textResult("No related past conversation found."), nil, nil
	}
	return textResult(result.TranscriptExcerpt()), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
