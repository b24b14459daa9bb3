package analysis

import (
	"context"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pratyushraj/noticebazaar-sub008/internal/document"
	"github.com/pratyushraj/noticebazaar-sub008/internal/llm"
	"github.com/pratyushraj/noticebazaar-sub008/internal/logger"
)

type Options struct {
	MaxPromptChars int
	Policy         llm.Policy
	// Scorer defaults to NegotiationPower.
	Scorer Scorer
}

// Engine asks the model for a structured risk analysis of an accepted
// contract and normalizes the reply.
type Engine struct {
	gw     llm.Gateway
	opts   Options
	schema *jsonschema.Schema
}

func NewEngine(gw llm.Gateway, opts Options) (*Engine, error) {
	if opts.MaxPromptChars <= 0 {
		opts.MaxPromptChars = 12000
	}
	if opts.Scorer == nil {
		opts.Scorer = NegotiationPower
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("compile analysis schema: %w", err)
	}
	return &Engine{gw: gw, opts: opts, schema: schema}, nil
}

// Analyze returns a *llm.ProviderError when the model call fails and a
// *ParseError when the reply holds no usable JSON object. Neither case has a
// fallback result.
func (e *Engine) Analyze(ctx context.Context, doc document.Text) (Result, error) {
	raw, err := e.opts.Policy.Complete(ctx, e.gw, buildPrompt(doc.Content, e.opts.MaxPromptChars))
	if err != nil {
		return Result{}, err
	}
	obj, err := Parse(raw)
	if err != nil {
		logger.Warn(ctx, "analysis response unparseable", "provider", e.gw.Name(), "model", e.gw.Model(), "bytes", len(raw))
		return Result{}, err
	}
	if diags := diagnose(e.schema, obj); len(diags) > 0 {
		logger.Warn(ctx, "analysis response deviates from schema", "provider", e.gw.Name(), "deviations", diags)
	}

	res := Normalize(obj)
	res.NegotiationPowerScore = e.opts.Scorer(res)
	logger.Info(ctx, "analysis complete",
		"protection_score", res.ProtectionScore,
		"negotiation_power", res.NegotiationPowerScore,
		"overall_risk", res.OverallRisk,
		"issues", len(res.Issues),
	)
	return res, nil
}
