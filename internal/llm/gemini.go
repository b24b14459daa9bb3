package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewGemini(cfg ProviderConfig, client *http.Client) *Gemini {
	return &Gemini{
		apiKey:  cfg.APIKey,
		model:   firstNonEmpty(cfg.Model, "gemini-1.5-flash"),
		baseURL: strings.TrimSuffix(firstNonEmpty(cfg.BaseURL, "https://generativelanguage.googleapis.com"), "/"),
		client:  client,
	}
}

func (g *Gemini) Name() string  { return string(KindGemini) }
func (g *Gemini) Model() string { return g.model }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig map[string]any  `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	if g.apiKey == "" {
		return "", missingKey(g.Name())
	}
	req := geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: map[string]any{"temperature": 0.1},
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.model)
	body, err := postJSON(ctx, g.client, g.Name(), url, map[string]string{"x-goog-api-key": g.apiKey}, req)
	if err != nil {
		return "", err
	}
	var decoded geminiResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", malformed(g.Name(), "undecodable response", err)
	}
	if decoded.PromptFeedback != nil && decoded.PromptFeedback.BlockReason != "" {
		return "", malformed(g.Name(), "prompt blocked: "+decoded.PromptFeedback.BlockReason, nil)
	}
	var sb strings.Builder
	for _, cand := range decoded.Candidates {
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
		if sb.Len() > 0 {
			break
		}
	}
	if sb.Len() == 0 {
		return "", malformed(g.Name(), "no candidate text", nil)
	}
	return sb.String(), nil
}
