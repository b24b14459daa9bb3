package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type Ollama struct {
	model   string
	baseURL string
	client  *http.Client
}

func NewOllama(cfg ProviderConfig, client *http.Client) *Ollama {
	return &Ollama{
		model:   firstNonEmpty(cfg.Model, "llama3"),
		baseURL: strings.TrimSuffix(firstNonEmpty(cfg.BaseURL, "http://localhost:11434"), "/"),
		client:  client,
	}
}

func (o *Ollama) Name() string  { return string(KindOllama) }
func (o *Ollama) Model() string { return o.model }

func (o *Ollama) Complete(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":  o.model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": 0.1,
		},
	}
	body, err := postJSON(ctx, o.client, o.Name(), o.baseURL+"/api/generate", nil, payload)
	if err != nil {
		return "", err
	}
	var decoded struct {
		Response *string `json:"response"`
		Error    string  `json:"error"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", malformed(o.Name(), "undecodable response", err)
	}
	if decoded.Error != "" {
		return "", &ProviderError{Provider: o.Name(), Kind: ErrUpstream, Message: decoded.Error}
	}
	if decoded.Response == nil {
		return "", malformed(o.Name(), "missing response field", nil)
	}
	return *decoded.Response, nil
}
