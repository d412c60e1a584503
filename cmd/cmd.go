// Package cmd provides the membank CLI commands.
//
// Commands:
//   - ingest: walk the project tree and index every eligible file
//   - watch: follow live file edits and keep the index current
//   - chat: interactive conversation with the project's memory bank
//   - mcp: Model Context Protocol server for IDE integration
//
// All long-running commands shut down on SIGINT/SIGTERM via context
// cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alvolt/membank/internal/log"
)

// Execute is the main entry point for the membank CLI.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level}))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "ingest":
		return runIngest()
	case "watch":
		return runWatch()
	case "chat":
		return runChat()
	case "mcp":
		return runMCP()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("membank - persistent memory bank for your project")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  membank ingest       Index the project tree into the memory bank")
	fmt.Println("  membank watch        Keep the memory bank in sync with live edits")
	fmt.Println("  membank chat         Chat with the project's memory bank")
	fmt.Println("  membank mcp          Start MCP server (for IDE integration)")
	fmt.Println("  membank --version    Show version information")
	fmt.Println("  membank --help       Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY       Required: Gemini API key")
	fmt.Println("  DATABASE_URL         Optional: postgres:// connection URL")
	fmt.Println("  MEMBANK_PROJECT_ROOT Optional: project root (default: current directory)")
	fmt.Println("  DEBUG                Optional: enable debug logging")
}
