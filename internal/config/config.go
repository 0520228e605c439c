package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Reasoning service
	LLMProvider     string
	AnthropicAPIKey string
	AnthropicModel  string
	AnthropicURL    string
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
	LLMTimeout      time.Duration

	// Classification
	ClampConfidence bool

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Artifact persistence
	ArtifactBackend string
	ArtifactDir     string
	SQLitePath      string
	PathstoreURL    string
	PathstoreAPIKey string

	LogLevel string
}

// Load reads the environment, after merging in a .env file from the
// working directory if one exists. Variables already set win.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port: envOr("PORT", "8090"),

		LLMProvider:     envOr("LLM_PROVIDER", "anthropic"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		AnthropicURL:    os.Getenv("ANTHROPIC_BASE_URL"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     envOr("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		LLMTimeout:      envDuration("LLM_TIMEOUT", 120*time.Second),

		ClampConfidence: envBool("CLASSIFY_CLAMP_CONFIDENCE", false),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		ArtifactBackend: envOr("ARTIFACT_BACKEND", "file"),
		ArtifactDir:     envOr("ARTIFACT_DIR", "data/codebooks"),
		SQLitePath:      envOr("SQLITE_PATH", "data/codebook.db"),
		PathstoreURL:    os.Getenv("PATHSTORE_URL"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),

		LogLevel: envOr("LOG_LEVEL", "info"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.LLMTimeout < 0 {
		cfg.LLMTimeout = 120 * time.Second
	}

	return cfg
}

// Validate checks what the server needs before it can take requests.
func (c Config) Validate() error {
	switch c.LLMProvider {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
	default:
		return fmt.Errorf("LLM_PROVIDER must be anthropic or openai, got %q", c.LLMProvider)
	}
	switch c.ArtifactBackend {
	case "file", "sqlite":
	case "pathstore":
		if c.PathstoreURL == "" {
			return fmt.Errorf("PATHSTORE_URL is required for the pathstore backend")
		}
	default:
		return fmt.Errorf("ARTIFACT_BACKEND must be file, sqlite or pathstore, got %q", c.ArtifactBackend)
	}
	return nil
}

// LLMModel is the model name for the selected provider.
func (c Config) LLMModel() string {
	if c.LLMProvider == "openai" {
		return c.OpenAIModel
	}
	return c.AnthropicModel
}

// LLMAPIKey is the API key for the selected provider.
func (c Config) LLMAPIKey() string {
	if c.LLMProvider == "openai" {
		return c.OpenAIAPIKey
	}
	return c.AnthropicAPIKey
}

// LLMBaseURL is the endpoint override for the selected provider.
func (c Config) LLMBaseURL() string {
	if c.LLMProvider == "openai" {
		return c.OpenAIBaseURL
	}
	return c.AnthropicURL
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
