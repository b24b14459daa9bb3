package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("missing database dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{db: db}, nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type Document struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Format      string    `json:"format"`
	SizeBytes   int64     `json:"size_bytes"`
	SHA256      string    `json:"sha256"`
	ObjectKey   string    `json:"object_key"`
	SourceURL   string    `json:"source_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type ReviewStatus string

const (
	StatusQueued     ReviewStatus = "queued"
	StatusProcessing ReviewStatus = "processing"
	StatusAccepted   ReviewStatus = "accepted"
	StatusRejected   ReviewStatus = "rejected"
	StatusFailed     ReviewStatus = "failed"
)

type Review struct {
	ID             string          `json:"id"`
	DocumentID     string          `json:"document_id"`
	Status         ReviewStatus    `json:"status"`
	Classification json.RawMessage `json:"classification,omitempty"`
	Rejection      json.RawMessage `json:"-"`
	Analysis       json.RawMessage `json:"analysis,omitempty"`
	ErrorCode      string          `json:"error_code,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	Provider       string          `json:"provider,omitempty"`
	Model          string          `json:"model,omitempty"`
	Attempts       int             `json:"attempts"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ReviewUpdate records the result of one processing attempt. Nil JSON fields
// are stored as NULL.
type ReviewUpdate struct {
	Status         ReviewStatus
	Classification any
	Rejection      any
	Analysis       any
	ErrorCode      string
	ErrorMessage   string
	Provider       string
	Model          string
}

func (s *Store) CreateDocument(ctx context.Context, d Document) (Document, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Format == "" {
		d.Format = "unknown"
	}
	err := s.db.QueryRowContext(ctx, `INSERT INTO documents (id, filename, content_type, format, size_bytes, sha256, object_key, source_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`,
		d.ID, d.Filename, d.ContentType, d.Format, d.SizeBytes, d.SHA256, d.ObjectKey, d.SourceURL,
	).Scan(&d.CreatedAt)
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	return d, nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (Document, error) {
	var d Document
	err := s.db.QueryRowContext(ctx, `SELECT id, filename, content_type, format, size_bytes, sha256, object_key, source_url, created_at
		FROM documents WHERE id = $1`, id,
	).Scan(&d.ID, &d.Filename, &d.ContentType, &d.Format, &d.SizeBytes, &d.SHA256, &d.ObjectKey, &d.SourceURL, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return d, err
}

func (s *Store) CreateReview(ctx context.Context, documentID string) (Review, error) {
	r := Review{ID: uuid.NewString(), DocumentID: documentID, Status: StatusQueued}
	err := s.db.QueryRowContext(ctx, `INSERT INTO reviews (id, document_id, status) VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`, r.ID, r.DocumentID, r.Status,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Review{}, fmt.Errorf("insert review: %w", err)
	}
	return r, nil
}

const reviewColumns = `id, document_id, status, classification, rejection, analysis, error_code, error_message, provider, model, attempts, created_at, updated_at`

func scanReview(row interface{ Scan(...any) error }) (Review, error) {
	var r Review
	var classification, rejection, analysis []byte
	if err := row.Scan(&r.ID, &r.DocumentID, &r.Status, &classification, &rejection, &analysis,
		&r.ErrorCode, &r.ErrorMessage, &r.Provider, &r.Model, &r.Attempts, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return Review{}, err
	}
	r.Classification = rawOrNil(classification)
	r.Rejection = rawOrNil(rejection)
	r.Analysis = rawOrNil(analysis)
	return r, nil
}

func (s *Store) GetReview(ctx context.Context, id string) (Review, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Review{}, ErrNotFound
	}
	r, err := scanReview(s.db.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Review{}, ErrNotFound
	}
	return r, err
}

func (s *Store) ListReviews(ctx context.Context, status ReviewStatus, limit int) ([]Review, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + reviewColumns + ` FROM reviews`
	args := []any{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// MarkProcessing moves a review into processing and counts the attempt.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE reviews SET status = $2, attempts = attempts + 1, updated_at = now() WHERE id = $1`,
		id, StatusProcessing)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *Store) UpdateReview(ctx context.Context, id string, u ReviewUpdate) error {
	classification, err := jsonParam(u.Classification)
	if err != nil {
		return fmt.Errorf("encode classification: %w", err)
	}
	rejection, err := jsonParam(u.Rejection)
	if err != nil {
		return fmt.Errorf("encode rejection: %w", err)
	}
	analysis, err := jsonParam(u.Analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE reviews SET status = $2, classification = $3::jsonb, rejection = $4::jsonb, analysis = $5::jsonb,
		error_code = $6, error_message = $7, provider = $8, model = $9, updated_at = now() WHERE id = $1`,
		id, u.Status, classification, rejection, analysis, u.ErrorCode, u.ErrorMessage, u.Provider, u.Model)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func jsonParam(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case json.RawMessage:
		if len(t) == 0 {
			return nil, nil
		}
		return string(t), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return nil, nil
	}
	return string(data), nil
}

func rawOrNil(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}
