package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pratyushraj/noticebazaar-sub008/internal/analysis"
	"github.com/pratyushraj/noticebazaar-sub008/internal/classify"
	"github.com/pratyushraj/noticebazaar-sub008/internal/document"
	"github.com/pratyushraj/noticebazaar-sub008/internal/llm"
)

// ValidationError means the document is not something we analyze: it was
// rejected as not being a brand deal contract or is too short.
type ValidationError struct {
	Classification classify.Result
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("document rejected at %s: %s", e.Classification.Stage, e.Classification.Reasoning)
}

type Outcome struct {
	Classification classify.Result  `json:"classification"`
	Analysis       *analysis.Result `json:"analysis,omitempty"`
}

type Classifier interface {
	Classify(ctx context.Context, doc document.Text) (classify.Result, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, doc document.Text) (analysis.Result, error)
}

type Pipeline struct {
	classifier Classifier
	analyzer   Analyzer
}

func New(classifier Classifier, analyzer Analyzer) *Pipeline {
	return &Pipeline{classifier: classifier, analyzer: analyzer}
}

type Options struct {
	Classify classify.Options
	Analysis analysis.Options
}

// Build wires the default classifier and analysis engine on one gateway.
func Build(gw llm.Gateway, opts Options) (*Pipeline, error) {
	engine, err := analysis.NewEngine(gw, opts.Analysis)
	if err != nil {
		return nil, err
	}
	return New(classify.New(gw, opts.Classify), engine), nil
}

// Classify runs only the classification stages.
func (p *Pipeline) Classify(ctx context.Context, doc document.Text) (classify.Result, error) {
	return p.classifier.Classify(ctx, doc)
}

// Run classifies doc and analyzes it when accepted. A rejected document
// yields the Outcome together with a *ValidationError. Analysis failures
// return the classification with the error and no analysis.
func (p *Pipeline) Run(ctx context.Context, doc document.Text) (Outcome, error) {
	cls, err := p.classifier.Classify(ctx, doc)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Classification: cls}
	if !cls.Accepted() {
		return out, &ValidationError{Classification: cls}
	}
	res, err := p.analyzer.Analyze(ctx, doc)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		return out, err
	}
	out.Analysis = &res
	return out, nil
}

type BatchItem struct {
	Outcome Outcome
	Err     error
}

// RunBatch runs independent documents concurrently, at most limit at a time.
// Per-document failures are reported in the item; the returned error is set
// only when ctx ends before every document was processed.
func (p *Pipeline) RunBatch(ctx context.Context, docs []document.Text, limit int) ([]BatchItem, error) {
	items := make([]BatchItem, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				items[i].Err = err
				return err
			}
			out, err := p.Run(gctx, doc)
			items[i] = BatchItem{Outcome: out, Err: err}
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return items, err
	}
	return items, nil
}
