// Package llm hides model providers behind a single prompt-in, text-out call.
//
// Adapters never retry; Policy owns timeouts and retries for callers.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Gateway interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
	Model() string
}

type Kind string

const (
	KindHuggingFace Kind = "huggingface"
	KindOpenAI      Kind = "openai"
	KindGroq        Kind = "groq"
	KindOpenRouter  Kind = "openrouter"
	KindGemini      Kind = "gemini"
	KindVertex      Kind = "vertex"
	KindAnthropic   Kind = "anthropic"
	KindOllama      Kind = "ollama"
	KindNoop        Kind = "noop"
)

var kinds = []Kind{
	KindHuggingFace, KindOpenAI, KindGroq, KindOpenRouter, KindGemini,
	KindVertex, KindAnthropic, KindOllama, KindNoop,
}

func ParseKind(s string) (Kind, error) {
	v := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range kinds {
		if k == v {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown model provider %q", s)
}

// ProviderConfig selects and parameterises one backend. It is fixed for the
// lifetime of a pipeline run.
type ProviderConfig struct {
	Provider  Kind
	Model     string
	APIKey    string
	BaseURL   string
	ProjectID string
	Region    string
}

func New(ctx context.Context, cfg ProviderConfig) (Gateway, error) {
	client := &http.Client{Timeout: 2 * time.Minute}
	switch cfg.Provider {
	case KindHuggingFace:
		return NewHuggingFace(cfg, client), nil
	case KindOpenAI, KindGroq, KindOpenRouter:
		return NewChatCompletions(cfg, client), nil
	case KindGemini:
		return NewGemini(cfg, client), nil
	case KindOllama:
		return NewOllama(cfg, client), nil
	case KindAnthropic:
		return NewAnthropic(cfg), nil
	case KindVertex:
		return NewVertex(ctx, cfg)
	case KindNoop, "":
		return NewNoop(), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
