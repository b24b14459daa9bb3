package document

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Remote talks to an external text extraction service. Files are posted as
// multipart uploads to /extract; when only a URL is known the service
// fetches it itself via /extract/url.
type Remote struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type remoteURLRequest struct {
	URL string `json:"url"`
}

type remoteResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	Data    struct {
		Text  string `json:"text"`
		Pages int    `json:"pages"`
	} `json:"data"`
}

func NewRemote(baseURL, token string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Remote{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (r *Remote) Extract(ctx context.Context, data []byte, format Format, sourceURL string) (string, error) {
	var req *http.Request
	var err error
	if len(data) > 0 {
		req, err = r.uploadRequest(ctx, data, format)
	} else {
		req, err = r.urlRequest(ctx, sourceURL)
	}
	if err != nil {
		return "", err
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("extraction service returned %d", resp.StatusCode)
	}

	var result remoteResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Code != 0 {
		return "", fmt.Errorf("extraction service error: %s", result.Message)
	}
	return result.Data.Text, nil
}

func (r *Remote) uploadRequest(ctx context.Context, data []byte, format Format) (*http.Request, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "document."+string(format))
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := mw.WriteField("format", string(format)); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/extract", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}

func (r *Remote) urlRequest(ctx context.Context, sourceURL string) (*http.Request, error) {
	payload, err := json.Marshal(remoteURLRequest{URL: sourceURL})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/extract/url", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
