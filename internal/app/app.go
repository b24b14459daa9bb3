package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pratyushraj/noticebazaar-sub008/internal/analysis"
	"github.com/pratyushraj/noticebazaar-sub008/internal/blob"
	"github.com/pratyushraj/noticebazaar-sub008/internal/classify"
	"github.com/pratyushraj/noticebazaar-sub008/internal/config"
	"github.com/pratyushraj/noticebazaar-sub008/internal/document"
	"github.com/pratyushraj/noticebazaar-sub008/internal/llm"
	"github.com/pratyushraj/noticebazaar-sub008/internal/logger"
	"github.com/pratyushraj/noticebazaar-sub008/internal/observability"
	"github.com/pratyushraj/noticebazaar-sub008/internal/pipeline"
	"github.com/pratyushraj/noticebazaar-sub008/internal/queue"
	"github.com/pratyushraj/noticebazaar-sub008/internal/store"
)

const maxUploadBytes = 20 << 20

type ReviewStore interface {
	Ping(ctx context.Context) error
	CreateDocument(ctx context.Context, d store.Document) (store.Document, error)
	GetDocument(ctx context.Context, id string) (store.Document, error)
	CreateReview(ctx context.Context, documentID string) (store.Review, error)
	GetReview(ctx context.Context, id string) (store.Review, error)
	ListReviews(ctx context.Context, status store.ReviewStatus, limit int) ([]store.Review, error)
	MarkProcessing(ctx context.Context, id string) error
	UpdateReview(ctx context.Context, id string, u store.ReviewUpdate) error
}

type JobQueue interface {
	Ping(ctx context.Context) error
	PushReviewJob(ctx context.Context, reviewID string) error
	PopReviewJob(ctx context.Context, timeout time.Duration) (string, error)
	Depth(ctx context.Context) (int64, error)
}

type BlobStore interface {
	Ping(ctx context.Context) error
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string, limit int64) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// App holds the long-lived dependencies shared by the HTTP server and the
// worker. Store, Queue and Blob may be nil when not configured; the routes
// that need them then answer 503.
type App struct {
	Config    config.Config
	Gateway   llm.Gateway
	Pipeline  *pipeline.Pipeline
	Extractor document.Extractor
	Store     ReviewStore
	Queue     JobQueue
	Blob      BlobStore
	Observer  *observability.ReviewObserver

	closers []io.Closer
}

// Engine is the analysis side of the wiring, split out so the CLI can run
// the pipeline without any storage.
type Engine struct {
	Gateway   llm.Gateway
	Pipeline  *pipeline.Pipeline
	Extractor document.Extractor
	closers   []io.Closer
}

func (e *Engine) Close() error {
	return closeAll(e.closers)
}

func NewEngine(ctx context.Context, cfg config.Config) (*Engine, error) {
	var closers []io.Closer
	gw, err := llm.New(ctx, cfg.ProviderConfig())
	if err != nil {
		return nil, fmt.Errorf("llm gateway: %w", err)
	}
	if c, ok := gw.(io.Closer); ok {
		closers = append(closers, c)
	}

	var verifier llm.Gateway
	if vc, ok := cfg.VerifierConfig(); ok {
		verifier, err = llm.New(ctx, vc)
		if err != nil {
			_ = closeAll(closers)
			return nil, fmt.Errorf("verifier gateway: %w", err)
		}
		if c, ok := verifier.(io.Closer); ok {
			closers = append(closers, c)
		}
	}

	rules, err := classify.LoadRules(cfg.Classify.RulesPath)
	if err != nil {
		_ = closeAll(closers)
		return nil, fmt.Errorf("classify rules: %w", err)
	}

	policy := cfg.Policy()
	p, err := pipeline.Build(gw, pipeline.Options{
		Classify: classify.Options{
			MinTextLength:  cfg.Classify.MinTextLength,
			MaxPromptChars: cfg.Classify.MaxPromptChars,
			Rules:          rules,
			Policy:         policy,
			Verifier:       verifier,
		},
		Analysis: analysis.Options{
			MaxPromptChars: cfg.Analysis.MaxPromptChars,
			Policy:         policy,
		},
	})
	if err != nil {
		_ = closeAll(closers)
		return nil, err
	}

	var remote *document.Remote
	if cfg.Extractor.URL != "" {
		remote = document.NewRemote(cfg.Extractor.URL, cfg.Extractor.Token, cfg.Extractor.Timeout)
	}

	logger.Info(ctx, "pipeline ready",
		"provider", gw.Name(), "model", gw.Model(),
		"verifier", verifier != nil, "rule_groups", len(rules.Groups()),
		"extractor", cfg.Extractor.URL != "")
	return &Engine{
		Gateway:   gw,
		Pipeline:  p,
		Extractor: document.NewService(remote),
		closers:   closers,
	}, nil
}

// New wires the full service: pipeline, database, queue and object store.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	eng, err := NewEngine(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{
		Config:    cfg,
		Gateway:   eng.Gateway,
		Pipeline:  eng.Pipeline,
		Extractor: eng.Extractor,
		Observer:  observability.NewReviewObserver(),
		closers:   eng.closers,
	}

	if cfg.Database.DSN != "" {
		st, err := store.Open(cfg.Database.DSN)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, st)
		if err := store.Migrate(ctx, st.DB()); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		a.Store = st
	}

	if cfg.Redis.URL != "" {
		q, err := queue.New(cfg.Redis.URL)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, q)
		a.Queue = q
	}

	if cfg.ObjectStore.Endpoint != "" {
		bs, err := blob.New(blob.Config{
			Endpoint:  cfg.ObjectStore.Endpoint,
			Bucket:    cfg.ObjectStore.Bucket,
			AccessKey: cfg.ObjectStore.AccessKey,
			SecretKey: cfg.ObjectStore.SecretKey,
			UseSSL:    cfg.ObjectStore.UseSSL,
		})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		if err := bs.EnsureBucket(ctx); err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Blob = bs
	}
	return a, nil
}

func (a *App) Close() error {
	return closeAll(a.closers)
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.HTTP.Addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Worker() *Worker {
	return &Worker{
		Store:       a.Store,
		Queue:       a.Queue,
		Blob:        a.Blob,
		Extractor:   a.Extractor,
		Pipeline:    a.Pipeline,
		Observer:    a.Observer,
		Provider:    a.Gateway.Name(),
		Model:       a.Gateway.Model(),
		Concurrency: a.Config.Worker.Concurrency,
		PollTimeout: a.Config.Worker.PollTimeout,
	}
}
