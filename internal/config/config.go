// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override, including DATABASE_URL)
//  2. Config file (~/.docchat/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, model, embedder, generation limits
//   - Storage: PostgreSQL connection (see storage.go)
//   - RAG: chunking, retrieval and context assembly tunables
//   - Scraper: fetch timeout and optional startup URL
//   - Tracing: OTLP span export
//
// Sensitive values (passwords) are masked in MarshalJSON and String.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Validation sentinels returned (wrapped) by Config.Validate.
var (
	ErrConfigNil               = errors.New("configuration is nil")
	ErrMissingAPIKey           = errors.New("missing API key")
	ErrInvalidModelName        = errors.New("invalid model name")
	ErrInvalidProvider         = errors.New("invalid provider")
	ErrInvalidTemperature      = errors.New("invalid temperature")
	ErrInvalidMaxTokens        = errors.New("invalid max output tokens")
	ErrInvalidEmbedderModel    = errors.New("invalid embedder model")
	ErrInvalidChunking         = errors.New("invalid chunking configuration")
	ErrInvalidRetrieval        = errors.New("invalid retrieval configuration")
	ErrInvalidOllamaHost       = errors.New("invalid Ollama host")
	ErrInvalidPostgresHost     = errors.New("invalid PostgreSQL host")
	ErrInvalidPostgresPort     = errors.New("invalid PostgreSQL port")
	ErrInvalidPostgresDBName   = errors.New("invalid PostgreSQL database name")
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")
	ErrInvalidPostgresSSLMode  = errors.New("invalid PostgreSQL SSL mode")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderGoogleAI = "googleai"
)

// TracingConfig configures the optional OTLP HTTP span exporter.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// ScraperConfig configures web page ingestion.
type ScraperConfig struct {
	// ScrapeURL, when set, is scraped once at server startup (best effort).
	ScrapeURL string `mapstructure:"scrape_url" json:"scrape_url"`
	TimeoutMS int    `mapstructure:"timeout_ms" json:"timeout_ms"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI provider and model configuration
	Provider             string  `mapstructure:"provider" json:"provider"`     // "gemini" (default) or "ollama"
	ModelName            string  `mapstructure:"model_name" json:"model_name"` // e.g. "gemini-2.5-flash", "llama3.2"
	EmbedderModel        string  `mapstructure:"embedder_model" json:"embedder_model"`
	Temperature          float32 `mapstructure:"temperature" json:"temperature"`
	MaxOutputTokens      int     `mapstructure:"max_output_tokens" json:"max_output_tokens"`
	GenerationTimeoutSec int     `mapstructure:"generation_timeout_sec" json:"generation_timeout_sec"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// RAG tunables
	ChunkSize           int     `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap        int     `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	EmbeddingDim        int     `mapstructure:"embedding_dim" json:"embedding_dim"`
	TopK                int     `mapstructure:"top_k" json:"top_k"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" json:"similarity_threshold"`
	LowConfidenceScore  float64 `mapstructure:"low_confidence_score" json:"low_confidence_score"`
	MaxContextChars     int     `mapstructure:"max_context_chars" json:"max_context_chars"`
	HistoryWindow       int     `mapstructure:"history_window" json:"history_window"`

	// HTTP server
	ServerAddr string `mapstructure:"server_addr" json:"server_addr"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	Scraper ScraperConfig `mapstructure:"scraper" json:"scraper"`
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".docchat")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("embedder_model", "text-embedding-004")
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_output_tokens", 256)
	viper.SetDefault("generation_timeout_sec", 120)

	// Ollama defaults
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// RAG defaults
	viper.SetDefault("chunk_size", 500)
	viper.SetDefault("chunk_overlap", 50)
	viper.SetDefault("embedding_dim", 384)
	viper.SetDefault("top_k", 5)
	viper.SetDefault("similarity_threshold", 0.3)
	viper.SetDefault("low_confidence_score", 0.2)
	viper.SetDefault("max_context_chars", 2000)
	viper.SetDefault("history_window", 10)

	// HTTP server defaults
	viper.SetDefault("server_addr", ":8000")

	// PostgreSQL defaults for local development
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "docchat")
	viper.SetDefault("postgres_password", "docchat_dev_password")
	viper.SetDefault("postgres_db_name", "docchat")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Scraper defaults
	viper.SetDefault("scraper.scrape_url", "")
	viper.SetDefault("scraper.timeout_ms", 30000)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "localhost:4318")
	viper.SetDefault("tracing.service_name", "docchat")
	viper.SetDefault("tracing.environment", "dev")
}

// bindEnvVariables binds environment variable overrides explicitly.
// GEMINI_API_KEY is read directly by the Genkit plugin, not via Viper;
// Validate only checks its presence for the gemini provider.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a
	// runtime condition.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "DOCCHAT_PROVIDER")
	mustBind("model_name", "DOCCHAT_MODEL_NAME")
	mustBind("embedder_model", "DOCCHAT_EMBEDDER_MODEL")
	mustBind("ollama_host", "DOCCHAT_OLLAMA_HOST")
	mustBind("server_addr", "DOCCHAT_SERVER_ADDR")
	mustBind("scraper.scrape_url", "DOCCHAT_SCRAPE_URL")
	mustBind("tracing.enabled", "DOCCHAT_TRACING_ENABLED")
	mustBind("tracing.endpoint", "DOCCHAT_TRACING_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid substring matches against real secret content.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 chars or fewer are fully masked; longer secrets keep the
// first and last 2 characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.2".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	if c.Provider == ProviderOllama {
		return ProviderOllama + "/" + c.ModelName
	}
	return ProviderGoogleAI + "/" + c.ModelName
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
