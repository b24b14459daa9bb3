package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/pratyushraj/noticebazaar-sub008/internal/document"
	"github.com/pratyushraj/noticebazaar-sub008/internal/llm"
	"github.com/pratyushraj/noticebazaar-sub008/internal/logger"
)

type Type string

const (
	TypeBrandDeal    Type = "brand_deal_contract"
	TypeNotBrandDeal Type = "not_brand_deal"
)

type Stage string

const (
	StageLength     Stage = "length_check"
	StageHardReject Stage = "hard_rejection"
	StageSignals    Stage = "signal_scoring"
	StageBinary     Stage = "binary_classifier"
	StageConfidence Stage = "confidence_check"
	StageAccept     Stage = "accept"
)

// Rejection confidences grow the further a document got before failing.
const (
	confidenceTooShort   = 0.0
	confidenceHardReject = 0.0
	confidenceSignals    = 0.2
	confidenceBinary     = 0.3
	confidenceVerifier   = 0.4
	confidenceAccept     = 0.95
)

type RejectionKind string

const (
	RejectTooShort         RejectionKind = "too_short"
	RejectHard             RejectionKind = "hard_reject"
	RejectMissingSignals   RejectionKind = "missing_signals"
	RejectLLM              RejectionKind = "llm_rejected"
	RejectConfidenceFailed RejectionKind = "confidence_failed"
)

// Rejection carries diagnostics for logs and support tooling. It may quote
// model output and matched patterns, so it is not meant for end users.
type Rejection struct {
	Kind           RejectionKind `json:"kind"`
	Reason         string        `json:"reason,omitempty"`
	Pattern        string        `json:"pattern,omitempty"`
	MissingSignals []string      `json:"missing_signals,omitempty"`
	RawResponse    string        `json:"raw_response,omitempty"`
	FallbackScore  int           `json:"fallback_score,omitempty"`
	ProviderError  string        `json:"provider_error,omitempty"`
}

type Result struct {
	Type         Type       `json:"type"`
	Confidence   float64    `json:"confidence"`
	Reasoning    string     `json:"reasoning"`
	Stage        Stage      `json:"stage"`
	UsedFallback bool       `json:"used_fallback,omitempty"`
	Rejection    *Rejection `json:"-"`
}

func (r Result) Accepted() bool {
	return r.Type == TypeBrandDeal
}

type Options struct {
	MinTextLength  int
	MaxPromptChars int
	Rules          *RuleSet
	Policy         llm.Policy
	// Verifier answers the confidence check. Nil means the primary gateway.
	Verifier llm.Gateway
}

// Orchestrator runs the classification stages in order and stops at the
// first one that rejects. It holds no per-document state.
type Orchestrator struct {
	gw       llm.Gateway
	verifier llm.Gateway
	opts     Options
}

func New(gw llm.Gateway, opts Options) *Orchestrator {
	if opts.MinTextLength <= 0 {
		opts.MinTextLength = 100
	}
	if opts.MaxPromptChars <= 0 {
		opts.MaxPromptChars = 6000
	}
	if opts.Rules == nil {
		opts.Rules = DefaultRules()
	}
	verifier := opts.Verifier
	if verifier == nil {
		verifier = gw
	}
	return &Orchestrator{gw: gw, verifier: verifier, opts: opts}
}

type stageFunc func(ctx context.Context, doc document.Text) (next bool, res Result, err error)

// Classify returns a non-nil error only when ctx is done. Every other failure
// becomes a not_brand_deal result.
func (o *Orchestrator) Classify(ctx context.Context, doc document.Text) (Result, error) {
	stages := []stageFunc{
		o.lengthCheck,
		o.hardRejection,
		o.signalScoring,
		o.binaryClassifier,
		o.confidenceCheck,
	}
	for _, stage := range stages {
		next, res, err := stage(ctx, doc)
		if err != nil {
			return Result{}, err
		}
		if !next {
			o.logDecision(ctx, res)
			return res, nil
		}
	}
	res := Result{
		Type:       TypeBrandDeal,
		Confidence: confidenceAccept,
		Stage:      StageAccept,
		Reasoning:  "The document names a brand and a creator, sets out deliverables and payment, and was confirmed as a brand deal contract.",
	}
	o.logDecision(ctx, res)
	return res, nil
}

func (o *Orchestrator) lengthCheck(_ context.Context, doc document.Text) (bool, Result, error) {
	if doc.Len() >= o.opts.MinTextLength {
		return true, Result{}, nil
	}
	return false, reject(StageLength, confidenceTooShort,
		"The document is too short to be a brand deal contract.",
		&Rejection{Kind: RejectTooShort}), nil
}

func (o *Orchestrator) hardRejection(_ context.Context, doc document.Text) (bool, Result, error) {
	check := o.opts.Rules.Check(doc.Content)
	if !check.Rejected {
		return true, Result{}, nil
	}
	return false, reject(StageHardReject, confidenceHardReject,
		fmt.Sprintf("This looks like a %s rather than a brand deal contract.", check.Reason),
		&Rejection{Kind: RejectHard, Reason: check.Reason, Pattern: check.Pattern}), nil
}

func (o *Orchestrator) signalScoring(_ context.Context, doc document.Text) (bool, Result, error) {
	signals := ScoreSignals(doc.Content)
	if signals.Passed {
		return true, Result{}, nil
	}
	return false, reject(StageSignals, confidenceSignals,
		"The document does not mention enough of the usual brand deal terms such as "+strings.Join(signals.Missing, ", ")+".",
		&Rejection{Kind: RejectMissingSignals, MissingSignals: signals.Missing}), nil
}

func (o *Orchestrator) binaryClassifier(ctx context.Context, doc document.Text) (bool, Result, error) {
	prompt := fmt.Sprintf(binaryPromptTemplate, truncate(doc.Content, o.opts.MaxPromptChars))
	raw, err := o.opts.Policy.Complete(ctx, o.gw, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return false, Result{}, ctx.Err()
		}
		logger.Warn(ctx, "binary classifier unavailable", "provider", o.gw.Name(), "error", err)
		return false, reject(StageBinary, confidenceBinary,
			"The document could not be confirmed as a brand deal contract.",
			&Rejection{Kind: RejectLLM, ProviderError: err.Error()}), nil
	}
	if ParseBinaryReply(raw) {
		return true, Result{}, nil
	}
	return false, reject(StageBinary, confidenceBinary,
		"The document was not recognised as a brand deal contract.",
		&Rejection{Kind: RejectLLM, RawResponse: raw}), nil
}

func (o *Orchestrator) confidenceCheck(ctx context.Context, doc document.Text) (bool, Result, error) {
	prompt := fmt.Sprintf(confidencePromptTemplate, truncate(doc.Content, o.opts.MaxPromptChars))
	raw, err := o.opts.Policy.Complete(ctx, o.verifier, prompt)
	if err == nil && ParseConfidenceReply(raw) {
		return true, Result{}, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return false, Result{}, ctx.Err()
		}
		logger.Warn(ctx, "confidence check unavailable, using fallback score", "provider", o.verifier.Name(), "error", err)
	}

	score := FallbackScore(doc.Content)
	if score >= fallbackPass {
		logger.Debug(ctx, "confidence fallback passed", "score", score)
		return false, Result{
			Type:         TypeBrandDeal,
			Confidence:   confidenceAccept,
			Stage:        StageAccept,
			UsedFallback: true,
			Reasoning:    "The document names a brand and a creator and sets out deliverables and payment terms.",
		}, nil
	}
	rej := &Rejection{Kind: RejectConfidenceFailed, RawResponse: raw, FallbackScore: score}
	if err != nil {
		rej.ProviderError = err.Error()
	}
	return false, reject(StageConfidence, confidenceVerifier,
		"The document could not be confirmed as a brand deal contract with enough certainty.", rej), nil
}

func reject(stage Stage, confidence float64, reasoning string, rej *Rejection) Result {
	return Result{
		Type:       TypeNotBrandDeal,
		Confidence: confidence,
		Reasoning:  reasoning,
		Stage:      stage,
		Rejection:  rej,
	}
}

func (o *Orchestrator) logDecision(ctx context.Context, res Result) {
	args := []any{"type", res.Type, "stage", res.Stage, "confidence", res.Confidence}
	if res.Rejection != nil {
		args = append(args, "rejection", res.Rejection.Kind)
	}
	if res.UsedFallback {
		args = append(args, "fallback", true)
	}
	logger.Info(ctx, "classification decided", args...)
}
