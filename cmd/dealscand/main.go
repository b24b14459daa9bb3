package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pratyushraj/noticebazaar-sub008/internal/app"
	"github.com/pratyushraj/noticebazaar-sub008/internal/config"
	"github.com/pratyushraj/noticebazaar-sub008/internal/document"
	"github.com/pratyushraj/noticebazaar-sub008/internal/logger"
	"github.com/pratyushraj/noticebazaar-sub008/internal/pipeline"
	"github.com/pratyushraj/noticebazaar-sub008/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	cfg, err := config.Load(os.Getenv("NB_CONFIG"))
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch cmd {
	case "serve":
		runServe(ctx, cfg)
	case "worker":
		runWorker(ctx, cfg)
	case "migrate":
		runMigrate(ctx, cfg)
	case "classify":
		runFiles(ctx, cfg, os.Args[2:], true)
	case "analyze":
		runFiles(ctx, cfg, os.Args[2:], false)
	default:
		usage()
	}
}

func runServe(ctx context.Context, cfg config.Config) {
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("app init error: %v", err)
	}
	defer a.Close()

	if cfg.Worker.Embedded {
		go func() {
			if err := a.Worker().Run(ctx); err != nil {
				log.Printf("embedded worker error: %v", err)
			}
		}()
	}

	log.Printf("dealscand serving on %s", cfg.HTTP.Addr)
	if err := a.Serve(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runWorker(ctx context.Context, cfg config.Config) {
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("app init error: %v", err)
	}
	defer a.Close()

	if err := a.Worker().Run(ctx); err != nil {
		log.Fatalf("worker error: %v", err)
	}
}

func runMigrate(ctx context.Context, cfg config.Config) {
	st, err := store.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	defer st.Close()
	if err := store.Migrate(ctx, st.DB()); err != nil {
		log.Fatalf("migration error: %v", err)
	}
	log.Println("migrations applied")
}

type fileResult struct {
	File  string `json:"file"`
	Error string `json:"error,omitempty"`
	Value any    `json:"result,omitempty"`
}

// runFiles classifies or analyzes local files and prints one JSON document
// per file to stdout. It needs no database, queue or object store.
func runFiles(ctx context.Context, cfg config.Config, paths []string, classifyOnly bool) {
	if len(paths) == 0 {
		usage()
		os.Exit(2)
	}
	eng, err := app.NewEngine(ctx, cfg)
	if err != nil {
		log.Fatalf("pipeline init error: %v", err)
	}
	defer eng.Close()

	results := make([]fileResult, len(paths))
	var docs []document.Text
	var index []int
	for i, path := range paths {
		results[i].File = path
		data, err := os.ReadFile(path)
		if err != nil {
			results[i].Error = err.Error()
			continue
		}
		doc, err := eng.Extractor.Extract(ctx, data, path)
		if err != nil {
			var xerr *document.ExtractionError
			if errors.As(err, &xerr) {
				results[i].Error = xerr.UserMessage()
			} else {
				results[i].Error = err.Error()
			}
			continue
		}
		docs = append(docs, doc)
		index = append(index, i)
	}

	if classifyOnly {
		for j, doc := range docs {
			res, err := eng.Pipeline.Classify(ctx, doc)
			if err != nil {
				log.Fatalf("classify error: %v", err)
			}
			results[index[j]].Value = res
		}
	} else {
		items, err := eng.Pipeline.RunBatch(ctx, docs, cfg.Worker.Concurrency)
		if err != nil {
			log.Fatalf("analyze error: %v", err)
		}
		for j, item := range items {
			r := &results[index[j]]
			r.Value = item.Outcome
			var verr *pipeline.ValidationError
			if item.Err != nil && !errors.As(item.Err, &verr) {
				r.Error = item.Err.Error()
			}
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	failed := false
	for _, r := range results {
		if r.Error != "" {
			failed = true
		}
		if err := enc.Encode(r); err != nil {
			log.Fatalf("write error: %v", err)
		}
	}
	if failed {
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: dealscand <serve|worker|migrate|classify FILE...|analyze FILE...>")
}
