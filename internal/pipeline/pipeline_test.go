package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pratyushraj/noticebazaar-sub008/internal/analysis"
	"github.com/pratyushraj/noticebazaar-sub008/internal/classify"
	"github.com/pratyushraj/noticebazaar-sub008/internal/document"
	"github.com/pratyushraj/noticebazaar-sub008/internal/llm"
)

const dealText = `This agreement is made between Acme Cosmetics Pvt Ltd (the "Brand") and Priya Sharma
(the "Influencer"). The Influencer shall publish the following deliverables on Instagram: two reels
and three stories featuring the product. The Brand shall make a payment of INR 50,000 within 30 days.`

type stubClassifier struct {
	result classify.Result
	err    error
}

func (s stubClassifier) Classify(context.Context, document.Text) (classify.Result, error) {
	return s.result, s.err
}

type stubAnalyzer struct {
	calls  atomic.Int32
	result analysis.Result
	err    error
	delay  time.Duration
}

func (s *stubAnalyzer) Analyze(ctx context.Context, _ document.Text) (analysis.Result, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return analysis.Result{}, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.result, s.err
}

func text(t *testing.T, s string) document.Text {
	t.Helper()
	doc, err := document.NewText(s, document.FormatTXT)
	if err != nil {
		t.Fatalf("new text: %v", err)
	}
	return doc
}

var accepted = classify.Result{Type: classify.TypeBrandDeal, Confidence: 0.95, Stage: classify.StageAccept}

func TestRunRejectedIsValidationError(t *testing.T) {
	rejected := classify.Result{Type: classify.TypeNotBrandDeal, Confidence: 0.2, Stage: classify.StageSignals, Reasoning: "missing terms"}
	an := &stubAnalyzer{}
	p := New(stubClassifier{result: rejected}, an)
	out, err := p.Run(context.Background(), text(t, dealText))
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if ve.Classification.Confidence != 0.2 || out.Classification.Stage != classify.StageSignals {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.Analysis != nil || an.calls.Load() != 0 {
		t.Fatalf("analysis must not run for rejected documents")
	}
}

func TestRunAcceptedAnalyzes(t *testing.T) {
	an := &stubAnalyzer{result: analysis.Result{ProtectionScore: 80, NegotiationPowerScore: 77}}
	p := New(stubClassifier{result: accepted}, an)
	out, err := p.Run(context.Background(), text(t, dealText))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Analysis == nil || out.Analysis.NegotiationPowerScore != 77 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestRunParseErrorPropagates(t *testing.T) {
	an := &stubAnalyzer{err: &analysis.ParseError{Err: errors.New("bad json")}}
	p := New(stubClassifier{result: accepted}, an)
	out, err := p.Run(context.Background(), text(t, dealText))
	var pe *analysis.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if out.Analysis != nil || !out.Classification.Accepted() {
		t.Fatalf("expected classification without analysis, got %+v", out)
	}
}

func TestRunCancelledReturnsNoPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	an := &stubAnalyzer{delay: time.Minute}
	p := New(stubClassifier{result: accepted}, an)
	go func() {
		for an.calls.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()
	out, err := p.Run(ctx, text(t, dealText))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if out.Analysis != nil || out.Classification.Type != "" {
		t.Fatalf("expected empty outcome, got %+v", out)
	}
}

func TestBuildWithNoopGatewayRejects(t *testing.T) {
	p, err := Build(llm.NewNoop(), Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	out, err := p.Run(context.Background(), text(t, dealText))
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Classification.Stage != classify.StageBinary {
		t.Fatalf("expected binary rejection without a model, got %v", err)
	}
	if out.Analysis != nil || out.Classification.Accepted() {
		t.Fatalf("unexpected outcome %+v", out)
	}

	legal := "LEGAL NOTICE. The Plaintiff hereby informs the Defendant that the brand campaign payment for Instagram deliverables remains due."
	_, err = p.Run(context.Background(), text(t, legal))
	if !errors.As(err, &ve) || ve.Classification.Stage != classify.StageHardReject {
		t.Fatalf("expected hard rejection, got %v", err)
	}
}

func TestNoopAnalysisIsNotFabricated(t *testing.T) {
	p, err := Build(llm.NewNoop(), Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	p.classifier = stubClassifier{result: accepted}
	out, err := p.Run(context.Background(), text(t, dealText))
	var pe *llm.ProviderError
	if !errors.As(err, &pe) || pe.Kind != llm.ErrAuth {
		t.Fatalf("expected auth_error, got %v", err)
	}
	if out.Analysis != nil {
		t.Fatalf("expected no analysis, got %+v", out.Analysis)
	}
}

func TestRunBatch(t *testing.T) {
	p, err := Build(llm.NewNoop(), Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	docs := []document.Text{
		text(t, dealText),
		text(t, "too short"),
		text(t, strings.Replace(dealText, "Acme", "Zenith", 1)),
	}
	items, err := p.RunBatch(context.Background(), docs, 2)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	want := []classify.Stage{classify.StageBinary, classify.StageLength, classify.StageBinary}
	for i, item := range items {
		var ve *ValidationError
		if !errors.As(item.Err, &ve) || ve.Classification.Stage != want[i] {
			t.Fatalf("item %d: expected %s rejection, got %v", i, want[i], item.Err)
		}
	}
}

func TestRunBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(stubClassifier{result: accepted}, &stubAnalyzer{})
	items, err := p.RunBatch(ctx, []document.Text{text(t, dealText), text(t, dealText)}, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	for _, item := range items {
		if item.Err == nil {
			t.Fatalf("expected every item to carry the cancellation")
		}
	}
}
