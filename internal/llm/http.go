package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const maxResponseBytes = 1 << 20

// postJSON sends payload and returns the raw body of a 2xx response. Non-2xx
// statuses and transport failures come back as *ProviderError.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, transportError(ctx, provider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(ctx, provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(provider, resp, data)
	}
	return data, nil
}

func transportError(ctx context.Context, provider string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Provider: provider, Kind: ErrTimeout, Err: err}
	}
	return &ProviderError{Provider: provider, Kind: ErrTransport, Err: err}
}

func statusError(provider string, resp *http.Response, body []byte) *ProviderError {
	pe := &ProviderError{
		Provider: provider,
		Status:   resp.StatusCode,
		Kind:     ErrUpstream,
		Message:  snippet(body),
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		pe.Kind = ErrAuth
	case resp.StatusCode == http.StatusTooManyRequests:
		pe.Kind = ErrRateLimited
		pe.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	case resp.StatusCode == http.StatusServiceUnavailable:
		// Inference hosts report cold models as 503 with an estimated wait.
		var loading struct {
			Error         string  `json:"error"`
			EstimatedTime float64 `json:"estimated_time"`
		}
		_ = json.Unmarshal(body, &loading)
		if loading.EstimatedTime > 0 || strings.Contains(strings.ToLower(loading.Error), "loading") {
			pe.Kind = ErrModelLoading
			pe.RetryAfter = time.Duration(loading.EstimatedTime * float64(time.Second))
		}
		if pe.RetryAfter == 0 {
			pe.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
	}
	return pe
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
