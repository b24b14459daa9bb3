package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pratyushraj/noticebazaar-sub008/internal/analysis"
	"github.com/pratyushraj/noticebazaar-sub008/internal/blob"
	"github.com/pratyushraj/noticebazaar-sub008/internal/document"
	"github.com/pratyushraj/noticebazaar-sub008/internal/llm"
	"github.com/pratyushraj/noticebazaar-sub008/internal/logger"
	"github.com/pratyushraj/noticebazaar-sub008/internal/pipeline"
	"github.com/pratyushraj/noticebazaar-sub008/internal/store"
)

func (a *App) Router() *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), RequestLogger(), Recovery())

	r.GET("/healthz", a.handleHealth)
	r.GET("/readyz", a.handleReady)

	v1 := r.Group("/v1")
	limited := v1.Group("", RateLimit(a.Config.HTTP.RateLimitRPM))
	limited.POST("/classify", a.handleClassify)
	limited.POST("/analyze", a.handleAnalyze)
	limited.POST("/reviews", a.handleCreateReview)
	v1.GET("/reviews", a.handleListReviews)
	v1.GET("/reviews/:id", a.handleGetReview)
	v1.GET("/stats", a.handleStats)
	return r
}

func (a *App) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *App) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true
	check := func(name string, p interface{ Ping(context.Context) error }) {
		if p == nil {
			checks[name] = "disabled"
			return
		}
		if err := p.Ping(ctx); err != nil {
			logger.Warn(ctx, "readiness check failed", "dependency", name, "error", err)
			checks[name] = "unavailable"
			ready = false
			return
		}
		checks[name] = "ok"
	}
	check("database", a.Store)
	check("queue", a.Queue)
	check("object_store", a.Blob)

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "checks": checks})
}

type textRequest struct {
	Text   string `json:"text"`
	Format string `json:"format"`
}

// readDocument accepts either a JSON body with the text or a multipart
// upload in the "file" field. It writes the error response itself.
func (a *App) readDocument(c *gin.Context) (document.Text, bool) {
	if c.ContentType() == "multipart/form-data" {
		data, _, ok := readUpload(c)
		if !ok {
			return document.Text{}, false
		}
		doc, err := a.Extractor.Extract(c.Request.Context(), data, "")
		if err != nil {
			writeExtractionError(c, err)
			return document.Text{}, false
		}
		return doc, true
	}

	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return document.Text{}, false
	}
	format := document.Format(req.Format)
	if format == "" {
		format = document.FormatTXT
	}
	doc, err := document.NewText(req.Text, format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return document.Text{}, false
	}
	return doc, true
}

func (a *App) handleClassify(c *gin.Context) {
	doc, ok := a.readDocument(c)
	if !ok {
		return
	}
	res, err := a.Pipeline.Classify(c.Request.Context(), doc)
	if err != nil {
		writePipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (a *App) handleAnalyze(c *gin.Context) {
	doc, ok := a.readDocument(c)
	if !ok {
		return
	}
	out, err := a.Pipeline.Run(c.Request.Context(), doc)
	if err != nil {
		var verr *pipeline.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":          "document is not a brand deal contract",
				"classification": verr.Classification,
			})
			return
		}
		writePipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func writePipelineError(c *gin.Context, err error) {
	_ = c.Error(err)

	var perr *analysis.ParseError
	var provErr *llm.ProviderError
	switch {
	case errors.As(err, &perr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "the analysis could not be read, please retry",
			"retry": true,
		})
	case errors.As(err, &provErr):
		body := gin.H{"error": "the language model is unavailable", "retry": provErr.Retryable()}
		if provErr.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(provErr.RetryAfter.Seconds())))
		}
		c.JSON(http.StatusBadGateway, body)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request cancelled"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func writeExtractionError(c *gin.Context, err error) {
	_ = c.Error(err)

	var xerr *document.ExtractionError
	if !errors.As(err, &xerr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	status := http.StatusUnprocessableEntity
	switch xerr.Reason {
	case document.ReasonUnsupported:
		status = http.StatusUnsupportedMediaType
	case document.ReasonRemote:
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": xerr.UserMessage(), "reason": xerr.Reason})
}

func readUpload(c *gin.Context) ([]byte, string, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return nil, "", false
	}
	if fh.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file is too large"})
		return nil, "", false
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file could not be read"})
		return nil, "", false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file could not be read"})
		return nil, "", false
	}
	return data, fh.Filename, true
}

var contentTypes = map[document.Format]string{
	document.FormatPDF:  "application/pdf",
	document.FormatDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	document.FormatTXT:  "text/plain; charset=utf-8",
}

func (a *App) handleCreateReview(c *gin.Context) {
	if a.Store == nil || a.Queue == nil || a.Blob == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reviews are not enabled"})
		return
	}
	data, filename, ok := readUpload(c)
	if !ok {
		return
	}
	format := document.DetectFormat(data, filename)
	contentType, supported := contentTypes[format]
	if !supported {
		writeExtractionError(c, &document.ExtractionError{Reason: document.ReasonUnsupported, Format: format})
		return
	}

	ctx := c.Request.Context()
	sum := sha256.Sum256(data)
	docID := uuid.NewString()
	key := blob.Key(docID, filename)
	if err := a.Blob.Put(ctx, key, data, contentType); err != nil {
		logger.Error(ctx, "store upload failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	doc, err := a.Store.CreateDocument(ctx, store.Document{
		ID:          docID,
		Filename:    filename,
		ContentType: contentType,
		Format:      string(format),
		SizeBytes:   int64(len(data)),
		SHA256:      hex.EncodeToString(sum[:]),
		ObjectKey:   key,
	})
	if err != nil {
		logger.Error(ctx, "create document failed", "error", err)
		a.discardUpload(ctx, key)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	review, err := a.Store.CreateReview(ctx, doc.ID)
	if err != nil {
		logger.Error(ctx, "create review failed", "document_id", doc.ID, "error", err)
		a.discardUpload(ctx, key)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	if err := a.Queue.PushReviewJob(ctx, review.ID); err != nil {
		logger.Error(ctx, "enqueue review failed", "review_id", review.ID, "error", err)
		_ = a.Store.UpdateReview(ctx, review.ID, store.ReviewUpdate{
			Status:       store.StatusFailed,
			ErrorCode:    "enqueue_failed",
			ErrorMessage: "The review could not be scheduled. Please upload the document again.",
		})
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "review could not be scheduled"})
		return
	}

	logger.Info(ctx, "review queued", "review_id", review.ID, "document_id", doc.ID, "format", format, "size_bytes", len(data))
	c.JSON(http.StatusAccepted, gin.H{
		"review_id":   review.ID,
		"document_id": doc.ID,
		"status":      review.Status,
	})
}

// discardUpload removes an object whose metadata was never written. It runs
// even when the request was cancelled.
func (a *App) discardUpload(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.Blob.Delete(ctx, key); err != nil {
		logger.Error(ctx, "orphaned upload", "object_key", key, "error", err)
	}
}

func (a *App) handleGetReview(c *gin.Context) {
	if a.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reviews are not enabled"})
		return
	}
	review, err := a.Store.GetReview(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, review)
}

func (a *App) handleListReviews(c *gin.Context) {
	if a.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reviews are not enabled"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit > 200 {
		limit = 200
	}
	reviews, err := a.Store.ListReviews(c.Request.Context(), store.ReviewStatus(c.Query("status")), limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if reviews == nil {
		reviews = []store.Review{}
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}

// handleStats reports the queue backlog and the outcomes recorded by a
// worker running in this process.
func (a *App) handleStats(c *gin.Context) {
	body := gin.H{"reviews": a.Observer.Snapshot()}
	if a.Queue != nil {
		depth, err := a.Queue.Depth(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
			return
		}
		body["queue_depth"] = depth
	}
	c.JSON(http.StatusOK, body)
}
