package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env here
	for _, k := range []string{"PORT", "LLM_PROVIDER", "LLM_TIMEOUT", "WORKER_COUNT", "ARTIFACT_BACKEND", "CLASSIFY_CLAMP_CONFIDENCE", "JOB_TTL"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.Port != "8090" {
		t.Errorf("expected default port 8090, got %q", cfg.Port)
	}
	if cfg.LLMProvider != "anthropic" || cfg.LLMTimeout != 120*time.Second {
		t.Errorf("unexpected llm defaults: %q %v", cfg.LLMProvider, cfg.LLMTimeout)
	}
	if cfg.ClampConfidence {
		t.Error("confidence clamping should be off by default")
	}
	if cfg.ArtifactBackend != "file" || cfg.WorkerCount != 4 || cfg.JobTTL != time.Hour {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_MODEL", "local")
	t.Setenv("OPENAI_API_KEY", "sk")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("CLASSIFY_CLAMP_CONFIDENCE", "true")
	t.Setenv("WORKER_COUNT", "-1")
	t.Setenv("MAX_QUEUE_SIZE", "not-a-number")

	cfg := Load()
	if cfg.LLMModel() != "local" || cfg.LLMAPIKey() != "sk" {
		t.Errorf("provider-specific accessors wrong: %q %q", cfg.LLMModel(), cfg.LLMAPIKey())
	}
	if cfg.LLMTimeout != 5*time.Second || !cfg.ClampConfidence {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.WorkerCount != 4 || cfg.MaxQueueSize != 100 {
		t.Errorf("invalid values should fall back: workers=%d queue=%d", cfg.WorkerCount, cfg.MaxQueueSize)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"anthropic ok", Config{LLMProvider: "anthropic", AnthropicAPIKey: "k", ArtifactBackend: "file"}, false},
		{"anthropic missing key", Config{LLMProvider: "anthropic", ArtifactBackend: "file"}, true},
		{"openai missing key", Config{LLMProvider: "openai", AnthropicAPIKey: "k", ArtifactBackend: "file"}, true},
		{"unknown provider", Config{LLMProvider: "ollama", ArtifactBackend: "file"}, true},
		{"pathstore without url", Config{LLMProvider: "anthropic", AnthropicAPIKey: "k", ArtifactBackend: "pathstore"}, true},
		{"sqlite ok", Config{LLMProvider: "anthropic", AnthropicAPIKey: "k", ArtifactBackend: "sqlite"}, false},
		{"unknown backend", Config{LLMProvider: "anthropic", AnthropicAPIKey: "k", ArtifactBackend: "s3"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
