// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (MEMBANK_* plus DATABASE_URL / GEMINI_API_KEY)
//  2. Config file (~/.membank/config.yaml)
//  3. Default values
//
// Configuration errors are the only fatal error class in the system: they
// are reported once at startup and the process exits. Everything downstream
// degrades instead of crashing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates the embedding/chat provider key is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProjectRoot indicates the project root does not resolve to a directory.
	ErrInvalidProjectRoot = errors.New("invalid project root")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidCharBudget indicates the embedding character budget is not positive.
	ErrInvalidCharBudget = errors.New("invalid embedding character budget")

	// ErrInvalidMinChars indicates a minimum-length knob is negative or
	// exceeds the character budget.
	ErrInvalidMinChars = errors.New("invalid minimum character threshold")

	// ErrInvalidMaxFileChars indicates the large-file threshold is not positive.
	ErrInvalidMaxFileChars = errors.New("invalid max file size")

	// ErrInvalidTopK indicates top_k is outside [1, 100].
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrNoTargetExtensions indicates the target extension set is empty.
	ErrNoTargetExtensions = errors.New("no target extensions configured")
)

// Defaults mirror the tunables of the original memory bank: the extension
// and ignore sets, the 9000-char embedding budget, the 100000-char large
// file cutoff, and the 10/5 ingest/query minimum lengths.
const (
	DefaultChatModel       = "gemini-2.0-flash"
	DefaultEmbedderModel   = "text-embedding-004"
	DefaultEmbedCharBudget = 9000
	DefaultMaxFileChars    = 100_000
	DefaultIngestMinChars  = 10
	DefaultQueryMinChars   = 5
	DefaultTopK            = 5
	DefaultEmbedRate       = 1.0 // embedding calls per second (token bucket)
	DefaultEmbedBurst      = 5
)

// Config stores application configuration.
type Config struct {
	// Provider credentials and models
	GeminiAPIKey  string `mapstructure:"gemini_api_key"`
	ChatModel     string `mapstructure:"chat_model"`
	EmbedderModel string `mapstructure:"embedder_model"`

	// Memory engine tunables
	ProjectRoot      string   `mapstructure:"project_root"`
	TargetExtensions []string `mapstructure:"target_extensions"`
	IgnoreDirs       []string `mapstructure:"ignore_dirs"`
	MaxFileChars     int      `mapstructure:"max_file_chars"`
	EmbedCharBudget  int      `mapstructure:"embed_char_budget"`
	IngestMinChars   int      `mapstructure:"ingest_min_chars"`
	QueryMinChars    int      `mapstructure:"query_min_chars"`
	TopK             int      `mapstructure:"top_k"`
	EmbedRate        float64  `mapstructure:"embed_rate"`
	EmbedBurst       int      `mapstructure:"embed_burst"`

	// PostgreSQL connection (see storage.go for DSN builders)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_dbname"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode"`

	// Observability: OTLP HTTP trace endpoint, empty disables tracing.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// Load reads configuration from defaults, an optional config file and the
// environment, then validates it.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("MEMBANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVariables(v)

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".membank"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Common unprefixed variables take priority over file values.
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.GeminiAPIKey = key
	}
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	if cfg.ProjectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		cfg.ProjectRoot = wd
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chat_model", DefaultChatModel)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("target_extensions", []string{".js", ".json", ".html", ".css", ".md", ".txt"})
	v.SetDefault("ignore_dirs", []string{"node_modules", ".git", "dist", "wallet", "assets", ".next", "__pycache__"})
	v.SetDefault("max_file_chars", DefaultMaxFileChars)
	v.SetDefault("embed_char_budget", DefaultEmbedCharBudget)
	v.SetDefault("ingest_min_chars", DefaultIngestMinChars)
	v.SetDefault("query_min_chars", DefaultQueryMinChars)
	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("embed_rate", DefaultEmbedRate)
	v.SetDefault("embed_burst", DefaultEmbedBurst)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "membank")
	v.SetDefault("postgres_dbname", "membank")
	v.SetDefault("postgres_sslmode", "disable")
}

// bindEnvVariables registers environment variables for keys that carry no
// default. AutomaticEnv only resolves keys viper already knows about, so
// without an explicit binding Unmarshal never sees these values.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("gemini_api_key", "MEMBANK_GEMINI_API_KEY")
	mustBind("project_root", "MEMBANK_PROJECT_ROOT")
	mustBind("postgres_password", "MEMBANK_POSTGRES_PASSWORD")
	mustBind("otlp_endpoint", "MEMBANK_OTLP_ENDPOINT")
}

// ExtensionSet returns the target extensions as a lowercase lookup set.
func (c *Config) ExtensionSet() map[string]bool {
	set := make(map[string]bool, len(c.TargetExtensions))
	for _, ext := range c.TargetExtensions {
		set[strings.ToLower(ext)] = true
	}
	return set
}

// IgnoreSet returns the ignored directory names as a lookup set.
func (c *Config) IgnoreSet() map[string]bool {
	set := make(map[string]bool, len(c.IgnoreDirs))
	for _, dir := range c.IgnoreDirs {
		set[dir] = true
	}
	return set
}
