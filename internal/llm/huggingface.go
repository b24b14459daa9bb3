package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type HuggingFace struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewHuggingFace(cfg ProviderConfig, client *http.Client) *HuggingFace {
	return &HuggingFace{
		apiKey:  cfg.APIKey,
		model:   firstNonEmpty(cfg.Model, "mistralai/Mistral-7B-Instruct-v0.2"),
		baseURL: strings.TrimSuffix(firstNonEmpty(cfg.BaseURL, "https://api-inference.huggingface.co"), "/"),
		client:  client,
	}
}

func (h *HuggingFace) Name() string  { return string(KindHuggingFace) }
func (h *HuggingFace) Model() string { return h.model }

func (h *HuggingFace) Complete(ctx context.Context, prompt string) (string, error) {
	if h.apiKey == "" {
		return "", missingKey(h.Name())
	}
	payload := map[string]any{
		"inputs": prompt,
		"parameters": map[string]any{
			"max_new_tokens":   1024,
			"temperature":      0.1,
			"return_full_text": false,
		},
	}
	url := fmt.Sprintf("%s/models/%s", h.baseURL, h.model)
	body, err := postJSON(ctx, h.client, h.Name(), url, map[string]string{"Authorization": "Bearer " + h.apiKey}, payload)
	if err != nil {
		return "", err
	}

	// The endpoint answers with a list for text-generation models and a bare
	// object for some pipelines.
	var list []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(body, &list); err == nil {
		if len(list) == 0 {
			return "", malformed(h.Name(), "empty generation list", nil)
		}
		return list[0].GeneratedText, nil
	}
	var single struct {
		GeneratedText *string `json:"generated_text"`
	}
	if err := json.Unmarshal(body, &single); err != nil {
		return "", malformed(h.Name(), "undecodable response", err)
	}
	if single.GeneratedText == nil {
		return "", malformed(h.Name(), "missing generated_text", nil)
	}
	return *single.GeneratedText, nil
}
