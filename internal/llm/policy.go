package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// Policy is the caller-side timeout and retry discipline around a Gateway.
// Only rate_limited and model_loading failures are retried.
type Policy struct {
	Timeout     time.Duration
	MaxRetries  int
	MaxBackoff  time.Duration
	BaseBackoff time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.Timeout <= 0 {
		p.Timeout = 30 * time.Second
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 20 * time.Second
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = 500 * time.Millisecond
	}
	return p
}

func (p Policy) Complete(ctx context.Context, gw Gateway, prompt string) (string, error) {
	p = p.withDefaults()
	base := retry.NewFibonacci(p.BaseBackoff)
	base = retry.WithCappedDuration(p.MaxBackoff, base)
	base = retry.WithMaxRetries(uint64(p.MaxRetries), base)

	// retryAfter is the provider's hint from the last failed attempt. It
	// stretches the next wait but never adds to it, and it is dropped once
	// the retry budget is spent.
	var retryAfter time.Duration
	b := retry.BackoffFunc(func() (time.Duration, bool) {
		next, stop := base.Next()
		hint := retryAfter
		retryAfter = 0
		if stop {
			return 0, true
		}
		if hint > p.MaxBackoff {
			hint = p.MaxBackoff
		}
		if hint > next {
			next = hint
		}
		return next, false
	})

	var out string
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		text, err := p.attempt(ctx, gw, prompt)
		if err == nil {
			out = text
			return nil
		}
		var pe *ProviderError
		if errors.As(err, &pe) && pe.Retryable() {
			retryAfter = pe.RetryAfter
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func (p Policy) attempt(ctx context.Context, gw Gateway, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	text, err := gw.Complete(callCtx, prompt)
	if err == nil {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	var pe *ProviderError
	if !errors.As(err, &pe) && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return "", &ProviderError{Provider: gw.Name(), Kind: ErrTimeout, Err: err}
	}
	return "", err
}

func Sleep(ctx context.Context, dur time.Duration) error {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
