package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// ChatCompletions speaks the OpenAI chat-completions dialect shared by
// OpenAI, Groq and OpenRouter.
type ChatCompletions struct {
	provider Kind
	apiKey   string
	model    string
	baseURL  string
	client   *http.Client
}

var chatDefaults = map[Kind]struct {
	baseURL string
	model   string
}{
	KindOpenAI:     {"https://api.openai.com/v1", "gpt-4o-mini"},
	KindGroq:       {"https://api.groq.com/openai/v1", "llama-3.1-8b-instant"},
	KindOpenRouter: {"https://openrouter.ai/api/v1", "meta-llama/llama-3.1-8b-instruct:free"},
}

func NewChatCompletions(cfg ProviderConfig, client *http.Client) *ChatCompletions {
	provider := cfg.Provider
	if _, ok := chatDefaults[provider]; !ok {
		provider = KindOpenAI
	}
	def := chatDefaults[provider]
	return &ChatCompletions{
		provider: provider,
		apiKey:   cfg.APIKey,
		model:    firstNonEmpty(cfg.Model, def.model),
		baseURL:  strings.TrimSuffix(firstNonEmpty(cfg.BaseURL, def.baseURL), "/"),
		client:   client,
	}
}

func (c *ChatCompletions) Name() string  { return string(c.provider) }
func (c *ChatCompletions) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *ChatCompletions) Complete(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", missingKey(c.Name())
	}
	req := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.1,
		MaxTokens:   2048,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	body, err := postJSON(ctx, c.client, c.Name(), c.baseURL+"/chat/completions", headers, req)
	if err != nil {
		return "", err
	}
	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", malformed(c.Name(), "undecodable response", err)
	}
	if len(decoded.Choices) == 0 || decoded.Choices[0].Message.Content == nil {
		return "", malformed(c.Name(), "no choices in response", nil)
	}
	return *decoded.Choices[0].Message.Content, nil
}
