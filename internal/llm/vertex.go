package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Vertex reaches Gemini models through Vertex AI using application default
// credentials instead of an API key.
type Vertex struct {
	model  string
	client *genai.Client
	gm     *genai.GenerativeModel
}

func NewVertex(ctx context.Context, cfg ProviderConfig) (*Vertex, error) {
	if cfg.ProjectID == "" {
		return nil, &ProviderError{Provider: string(KindVertex), Kind: ErrAuth, Message: "project id not configured"}
	}
	region := firstNonEmpty(cfg.Region, "us-central1")
	client, err := genai.NewClient(ctx, cfg.ProjectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	model := firstNonEmpty(cfg.Model, "gemini-1.5-pro")
	gm := client.GenerativeModel(model)
	gm.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.1),
	}
	return &Vertex{model: model, client: client, gm: gm}, nil
}

func (v *Vertex) Name() string  { return string(KindVertex) }
func (v *Vertex) Model() string { return v.model }

func (v *Vertex) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

func (v *Vertex) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := v.gm.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", v.classify(ctx, err)
	}
	text := candidateText(resp)
	if text == "" {
		return "", malformed(v.Name(), "no candidate text", nil)
	}
	return text, nil
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		if sb.Len() > 0 {
			break
		}
	}
	return sb.String()
}

func (v *Vertex) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	pe := &ProviderError{Provider: v.Name(), Kind: ErrUpstream, Err: err}
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		pe.Kind = ErrAuth
	case codes.ResourceExhausted:
		pe.Kind = ErrRateLimited
	case codes.Unavailable:
		pe.Kind = ErrModelLoading
	case codes.DeadlineExceeded:
		pe.Kind = ErrTimeout
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			pe.Kind = ErrTimeout
		}
	}
	return pe
}
