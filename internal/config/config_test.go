package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pratyushraj/noticebazaar-sub008/internal/llm"
)

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NB_HTTP_ADDR", ":9000")
	t.Setenv("NB_LLM_PROVIDER", "gemini")
	t.Setenv("NB_LLM_MODEL", "gemini-1.5-flash")
	t.Setenv("NB_LLM_API_KEY", "key-123")
	t.Setenv("NB_LLM_TIMEOUT", "12s")
	t.Setenv("NB_LLM_MAX_RETRIES", "4")
	t.Setenv("NB_CLASSIFY_MAX_PROMPT_CHARS", "3000")
	t.Setenv("NB_OBJECT_STORE_USE_SSL", "yes")
	t.Setenv("NB_HTTP_RATE_LIMIT_RPM", "0")
	t.Setenv("NB_WORKER_EMBEDDED", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":9000" {
		t.Fatalf("expected http addr override")
	}
	if cfg.LLM.Timeout != 12*time.Second {
		t.Fatalf("expected llm timeout override, got %s", cfg.LLM.Timeout)
	}
	if cfg.LLM.MaxRetries != 4 {
		t.Fatalf("expected max retries override, got %d", cfg.LLM.MaxRetries)
	}
	if cfg.Classify.MaxPromptChars != 3000 {
		t.Fatalf("expected prompt budget override, got %d", cfg.Classify.MaxPromptChars)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatalf("expected use_ssl true")
	}
	if cfg.HTTP.RateLimitRPM != 0 || !cfg.Worker.Embedded {
		t.Fatalf("expected rate limit disabled and embedded worker, got %d %v", cfg.HTTP.RateLimitRPM, cfg.Worker.Embedded)
	}

	pc := cfg.ProviderConfig()
	if pc.Provider != llm.KindGemini || pc.Model != "gemini-1.5-flash" || pc.APIKey != "key-123" {
		t.Fatalf("unexpected provider config: %+v", pc)
	}
	if _, ok := cfg.VerifierConfig(); ok {
		t.Fatalf("expected verifier to share the primary gateway")
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
llm:
  provider: openai
  model: gpt-4o-mini
  api_key: from-file
  verifier_provider: openai
  verifier_model: gpt-4o
classify:
  min_text_length: 150
worker:
  poll_timeout: 2s
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("NB_LLM_MODEL", "gpt-4.1-mini")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.Model != "gpt-4.1-mini" {
		t.Fatalf("expected env to win over file, got %s", cfg.LLM.Model)
	}
	if cfg.Classify.MinTextLength != 150 {
		t.Fatalf("expected min text length from file")
	}
	if cfg.Worker.PollTimeout != 2*time.Second {
		t.Fatalf("expected poll timeout from file, got %s", cfg.Worker.PollTimeout)
	}
	if cfg.Analysis.MaxPromptChars != 12000 {
		t.Fatalf("expected default analysis budget to survive")
	}
	vc, ok := cfg.VerifierConfig()
	if !ok {
		t.Fatalf("expected verifier config")
	}
	if vc.Model != "gpt-4o" || vc.APIKey != "from-file" {
		t.Fatalf("expected verifier to inherit the primary key, got %+v", vc)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("NB_LLM_PROVIDER", "carrier-pigeon")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected unknown provider to fail")
	}
}
