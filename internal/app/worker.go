package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pratyushraj/noticebazaar-sub008/internal/analysis"
	"github.com/pratyushraj/noticebazaar-sub008/internal/document"
	"github.com/pratyushraj/noticebazaar-sub008/internal/llm"
	"github.com/pratyushraj/noticebazaar-sub008/internal/logger"
	"github.com/pratyushraj/noticebazaar-sub008/internal/observability"
	"github.com/pratyushraj/noticebazaar-sub008/internal/pipeline"
	"github.com/pratyushraj/noticebazaar-sub008/internal/queue"
	"github.com/pratyushraj/noticebazaar-sub008/internal/store"
)

// Worker drains the review queue and records pipeline outcomes.
type Worker struct {
	Store     ReviewStore
	Queue     JobQueue
	Blob      BlobStore
	Extractor document.Extractor
	Pipeline  *pipeline.Pipeline
	Observer  *observability.ReviewObserver

	Provider string
	Model    string

	Concurrency int
	PollTimeout time.Duration
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Queue == nil || w.Blob == nil {
		return errors.New("worker needs database, redis and object store configured")
	}
	n := w.Concurrency
	if n <= 0 {
		n = 1
	}
	poll := w.PollTimeout
	if poll <= 0 {
		poll = 5 * time.Second
	}

	logger.Info(ctx, "worker started", "concurrency", n, "provider", w.Provider, "model", w.Model)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			for {
				if gctx.Err() != nil {
					return nil
				}
				id, err := w.Queue.PopReviewJob(gctx, poll)
				if errors.Is(err, queue.ErrEmpty) {
					continue
				}
				if err != nil {
					if gctx.Err() != nil {
						return nil
					}
					logger.Error(gctx, "pop review job failed", "error", err)
					if err := llm.Sleep(gctx, time.Second); err != nil {
						return nil
					}
					continue
				}
				if err := w.Process(gctx, id); err != nil && gctx.Err() == nil {
					logger.Error(logger.WithReviewID(gctx, id), "review processing failed", "error", err)
				}
			}
		})
	}
	err := g.Wait()
	stats := w.Observer.Snapshot()
	logger.Info(ctx, "worker stopped", "by_status", stats.ByStatus, "fallback_accepts", stats.Fallbacks)
	return err
}

// Process runs one review to a terminal status. The job has already left the
// queue, so whenever ctx ends before the outcome is written the review is put
// back on it.
func (w *Worker) Process(ctx context.Context, reviewID string) error {
	ctx = logger.WithReviewID(ctx, reviewID)

	review, err := w.Store.GetReview(ctx, reviewID)
	if err != nil {
		if ctx.Err() != nil {
			return w.requeue(reviewID, ctx.Err())
		}
		return fmt.Errorf("load review: %w", err)
	}
	switch review.Status {
	case store.StatusQueued, store.StatusProcessing:
	default:
		logger.Info(ctx, "review already finished", "status", review.Status)
		return nil
	}
	if err := w.Store.MarkProcessing(ctx, reviewID); err != nil {
		if ctx.Err() != nil {
			return w.requeue(reviewID, ctx.Err())
		}
		return fmt.Errorf("mark processing: %w", err)
	}

	doc, err := w.Store.GetDocument(ctx, review.DocumentID)
	if err != nil {
		if ctx.Err() != nil {
			return w.requeue(reviewID, ctx.Err())
		}
		return w.fail(ctx, reviewID, "document_missing", "The uploaded document could not be found.", err)
	}
	data, err := w.Blob.Get(ctx, doc.ObjectKey, maxUploadBytes)
	if err != nil {
		if ctx.Err() != nil {
			return w.requeue(reviewID, ctx.Err())
		}
		return w.fail(ctx, reviewID, "document_unavailable", "The uploaded document could not be read. Please try again later.", err)
	}

	text, err := w.Extractor.Extract(ctx, data, doc.SourceURL)
	if err != nil {
		if ctx.Err() != nil {
			return w.requeue(reviewID, ctx.Err())
		}
		var xerr *document.ExtractionError
		if errors.As(err, &xerr) {
			return w.fail(ctx, reviewID, string(xerr.Reason), xerr.UserMessage(), err)
		}
		return w.fail(ctx, reviewID, "extraction_failed", "The document text could not be extracted.", err)
	}

	out, err := w.Pipeline.Run(ctx, text)
	var verr *pipeline.ValidationError
	switch {
	case err == nil:
		logger.Info(ctx, "review accepted", "confidence", out.Classification.Confidence,
			"risk", out.Analysis.OverallRisk, "score", out.Analysis.ProtectionScore)
		return w.record(ctx, reviewID, store.ReviewUpdate{
			Status:         store.StatusAccepted,
			Classification: out.Classification,
			Analysis:       out.Analysis,
			Provider:       w.Provider,
			Model:          w.Model,
		}, "", out.Classification.UsedFallback)
	case errors.As(err, &verr):
		cls := verr.Classification
		logger.Info(ctx, "review rejected", "stage", cls.Stage, "confidence", cls.Confidence)
		return w.record(ctx, reviewID, store.ReviewUpdate{
			Status:         store.StatusRejected,
			Classification: cls,
			Rejection:      cls.Rejection,
			ErrorCode:      "not_brand_deal",
			ErrorMessage:   cls.Reasoning,
			Provider:       w.Provider,
			Model:          w.Model,
		}, string(cls.Stage), false)
	case ctx.Err() != nil:
		return w.requeue(reviewID, ctx.Err())
	}

	u := store.ReviewUpdate{
		Status:         store.StatusFailed,
		Classification: out.Classification,
		ErrorCode:      "analysis_failed",
		ErrorMessage:   "The contract could not be analyzed. Please try again.",
		Provider:       w.Provider,
		Model:          w.Model,
	}
	var perr *analysis.ParseError
	var provErr *llm.ProviderError
	switch {
	case errors.As(err, &perr):
		u.ErrorCode = "analysis_unparseable"
	case errors.As(err, &provErr):
		u.ErrorCode = string(provErr.Kind)
		if provErr.Retryable() {
			u.ErrorMessage = "The analysis service is busy. Please try again in a few minutes."
		}
	}
	logger.Warn(ctx, "review failed", "code", u.ErrorCode, "error", err)
	return w.record(ctx, reviewID, u, u.ErrorCode, out.Classification.UsedFallback)
}

func (w *Worker) fail(ctx context.Context, reviewID, code, message string, cause error) error {
	logger.Warn(ctx, "review failed", "code", code, "error", cause)
	return w.record(ctx, reviewID, store.ReviewUpdate{
		Status:       store.StatusFailed,
		ErrorCode:    code,
		ErrorMessage: message,
		Provider:     w.Provider,
		Model:        w.Model,
	}, code, false)
}

func (w *Worker) record(ctx context.Context, reviewID string, u store.ReviewUpdate, code string, usedFallback bool) error {
	if err := w.Store.UpdateReview(ctx, reviewID, u); err != nil {
		if ctx.Err() != nil {
			return w.requeue(reviewID, ctx.Err())
		}
		return fmt.Errorf("record %s: %w", u.Status, err)
	}
	w.Observer.RecordOutcome(ctx, string(u.Status), code, usedFallback)
	return nil
}

// requeue uses a fresh context since the worker's own is already done.
func (w *Worker) requeue(reviewID string, cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = logger.WithReviewID(ctx, reviewID)

	if err := w.Store.UpdateReview(ctx, reviewID, store.ReviewUpdate{Status: store.StatusQueued}); err != nil {
		return errors.Join(cause, err)
	}
	if err := w.Queue.PushReviewJob(ctx, reviewID); err != nil {
		return errors.Join(cause, err)
	}
	logger.Info(ctx, "review requeued")
	return cause
}
