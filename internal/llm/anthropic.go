package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type Anthropic struct {
	apiKey string
	model  string
	client anthropic.Client
}

func NewAnthropic(cfg ProviderConfig) *Anthropic {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Anthropic{
		apiKey: cfg.APIKey,
		model:  firstNonEmpty(cfg.Model, "claude-3-5-haiku-latest"),
		client: anthropic.NewClient(opts...),
	}
}

func (a *Anthropic) Name() string  { return string(KindAnthropic) }
func (a *Anthropic) Model() string { return a.model }

func (a *Anthropic) Complete(ctx context.Context, prompt string) (string, error) {
	if a.apiKey == "" {
		return "", missingKey(a.Name())
	}
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", a.classify(ctx, err)
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", malformed(a.Name(), "no text content in response", nil)
	}
	return sb.String(), nil
}

func (a *Anthropic) classify(ctx context.Context, err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return transportError(ctx, a.Name(), err)
	}
	pe := &ProviderError{Provider: a.Name(), Status: apiErr.StatusCode, Kind: ErrUpstream, Err: err}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		pe.Kind = ErrAuth
	case http.StatusTooManyRequests:
		pe.Kind = ErrRateLimited
		if apiErr.Response != nil {
			pe.RetryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
	case 529:
		// overloaded_error
		pe.Kind = ErrRateLimited
	}
	return pe
}
