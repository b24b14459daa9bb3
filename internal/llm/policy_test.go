package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stepGateway struct {
	steps []func(ctx context.Context) (string, error)
	calls int
}

func (s *stepGateway) Name() string  { return "step" }
func (s *stepGateway) Model() string { return "step-1" }

func (s *stepGateway) Complete(ctx context.Context, _ string) (string, error) {
	i := s.calls
	s.calls++
	if i >= len(s.steps) {
		return "", errors.New("unexpected call")
	}
	return s.steps[i](ctx)
}

func TestPolicyRetriesRateLimited(t *testing.T) {
	gw := &stepGateway{steps: []func(context.Context) (string, error){
		func(context.Context) (string, error) {
			return "", &ProviderError{Provider: "step", Kind: ErrRateLimited, RetryAfter: time.Millisecond}
		},
		func(context.Context) (string, error) {
			return "", &ProviderError{Provider: "step", Kind: ErrModelLoading}
		},
		func(context.Context) (string, error) { return "YES", nil },
	}}
	p := Policy{Timeout: time.Second, MaxRetries: 2, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
	out, err := p.Complete(context.Background(), gw, "prompt")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "YES" || gw.calls != 3 {
		t.Fatalf("expected success on third call, got %q after %d calls", out, gw.calls)
	}
}

func TestPolicyDoesNotRetryAuth(t *testing.T) {
	gw := &stepGateway{steps: []func(context.Context) (string, error){
		func(context.Context) (string, error) {
			return "", &ProviderError{Provider: "step", Kind: ErrAuth}
		},
	}}
	p := Policy{Timeout: time.Second, MaxRetries: 3, BaseBackoff: time.Millisecond}
	_, err := p.Complete(context.Background(), gw, "prompt")
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Kind != ErrAuth {
		t.Fatalf("expected auth_error, got %v", err)
	}
	if gw.calls != 1 {
		t.Fatalf("expected a single call, got %d", gw.calls)
	}
}

func TestPolicyGivesUpAfterMaxRetries(t *testing.T) {
	limited := func(context.Context) (string, error) {
		return "", &ProviderError{Provider: "step", Kind: ErrRateLimited}
	}
	gw := &stepGateway{steps: []func(context.Context) (string, error){limited, limited}}
	p := Policy{Timeout: time.Second, MaxRetries: 1, BaseBackoff: time.Millisecond}
	_, err := p.Complete(context.Background(), gw, "prompt")
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Kind != ErrRateLimited {
		t.Fatalf("expected rate_limited after retries, got %v", err)
	}
	if gw.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", gw.calls)
	}
}

func TestPolicyRetryAfterStretchesWait(t *testing.T) {
	gw := &stepGateway{steps: []func(context.Context) (string, error){
		func(context.Context) (string, error) {
			return "", &ProviderError{Provider: "step", Kind: ErrRateLimited, RetryAfter: 60 * time.Millisecond}
		},
		func(context.Context) (string, error) { return "YES", nil },
	}}
	p := Policy{Timeout: time.Second, MaxRetries: 1, BaseBackoff: time.Millisecond, MaxBackoff: time.Second}
	start := time.Now()
	if _, err := p.Complete(context.Background(), gw, "prompt"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Fatalf("expected to wait for Retry-After, waited %s", elapsed)
	}
}

func TestPolicyNoWaitAfterLastAttempt(t *testing.T) {
	limited := func(context.Context) (string, error) {
		return "", &ProviderError{Provider: "step", Kind: ErrRateLimited, RetryAfter: 10 * time.Second}
	}
	gw := &stepGateway{steps: []func(context.Context) (string, error){limited}}
	p := Policy{Timeout: time.Second, MaxRetries: 0, MaxBackoff: 10 * time.Second}
	start := time.Now()
	_, err := p.Complete(context.Background(), gw, "prompt")
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Kind != ErrRateLimited {
		t.Fatalf("expected rate_limited, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected an immediate error once retries are spent, waited %s", elapsed)
	}
}

func TestPolicyTimeoutBecomesProviderError(t *testing.T) {
	gw := &stepGateway{steps: []func(context.Context) (string, error){
		func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}}
	p := Policy{Timeout: 10 * time.Millisecond}
	_, err := p.Complete(context.Background(), gw, "prompt")
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Kind != ErrTimeout {
		t.Fatalf("expected timeout provider error, got %v", err)
	}
}

func TestPolicyCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gw := &stepGateway{steps: []func(context.Context) (string, error){
		func(context.Context) (string, error) {
			cancel()
			return "", &ProviderError{Provider: "step", Kind: ErrRateLimited}
		},
	}}
	p := Policy{Timeout: time.Second, MaxRetries: 3}
	_, err := p.Complete(ctx, gw, "prompt")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNoopFailsClosed(t *testing.T) {
	n := NewNoop()
	out, err := n.Complete(context.Background(), "Reply with exactly YES or NO. The influencer shall promote the brand.")
	if err != nil || out != "NO" {
		t.Fatalf("expected NO, got %q %v", out, err)
	}
	out, _ = n.Complete(context.Background(), "Reply CONFIDENT or NOT_CONFIDENT")
	if out != "NOT_CONFIDENT" {
		t.Fatalf("expected NOT_CONFIDENT, got %s", out)
	}
	_, err = n.Complete(context.Background(), "Summarize the risks as JSON.")
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Kind != ErrAuth || pe.Retryable() {
		t.Fatalf("expected non-retryable auth_error, got %v", err)
	}
}
