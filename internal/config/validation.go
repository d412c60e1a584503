package config

import (
	"fmt"
	"os"
)

// Validate checks the configuration for fatal startup errors.
// A failed validation halts the process; every other error class in the
// system degrades instead.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY or MEMBANK_GEMINI_API_KEY", ErrMissingAPIKey)
	}

	info, err := os.Stat(c.ProjectRoot)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %q is not a directory", ErrInvalidProjectRoot, c.ProjectRoot)
	}

	if c.PostgresHost == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return ErrInvalidPostgresDBName
	}

	if c.EmbedCharBudget <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCharBudget, c.EmbedCharBudget)
	}
	if c.IngestMinChars < 0 || c.IngestMinChars > c.EmbedCharBudget {
		return fmt.Errorf("%w: ingest_min_chars %d", ErrInvalidMinChars, c.IngestMinChars)
	}
	if c.QueryMinChars < 0 || c.QueryMinChars > c.EmbedCharBudget {
		return fmt.Errorf("%w: query_min_chars %d", ErrInvalidMinChars, c.QueryMinChars)
	}
	if c.MaxFileChars <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxFileChars, c.MaxFileChars)
	}
	if c.TopK < 1 || c.TopK > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidTopK, c.TopK)
	}
	if len(c.TargetExtensions) == 0 {
		return ErrNoTargetExtensions
	}

	return nil
}
