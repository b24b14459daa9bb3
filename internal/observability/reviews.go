package observability

import (
	"context"
	"sync"

	"github.com/pratyushraj/noticebazaar-sub008/internal/logger"
)

// ReviewObserver counts worker outcomes. A nil observer records nothing.
type ReviewObserver struct {
	mu            sync.Mutex
	byStatus      map[string]int64
	byCode        map[string]int64
	fallbacks     int64
	failureStreak int64
}

type Snapshot struct {
	ByStatus  map[string]int64 `json:"by_status"`
	ByCode    map[string]int64 `json:"by_code"`
	Fallbacks int64            `json:"fallback_accepts"`
}

func NewReviewObserver() *ReviewObserver {
	return &ReviewObserver{
		byStatus: make(map[string]int64),
		byCode:   make(map[string]int64),
	}
}

// RecordOutcome counts one finished review. code is the rejection stage or
// error code and may be empty for accepted reviews.
func (o *ReviewObserver) RecordOutcome(ctx context.Context, status, code string, usedFallback bool) {
	if o == nil {
		return
	}
	o.mu.Lock()
	o.byStatus[status]++
	if code != "" {
		o.byCode[code]++
	}
	if usedFallback {
		o.fallbacks++
	}
	if status == "failed" {
		o.failureStreak++
	} else {
		o.failureStreak = 0
	}
	streak := o.failureStreak
	o.mu.Unlock()

	// Repeated failures in a row usually mean the provider or extractor is down.
	if streak > 0 && streak%10 == 0 {
		logger.Warn(ctx, "review failures alert", "consecutive_failures", streak, "code", code)
	}
}

func (o *ReviewObserver) Snapshot() Snapshot {
	s := Snapshot{ByStatus: map[string]int64{}, ByCode: map[string]int64{}}
	if o == nil {
		return s
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for k, v := range o.byStatus {
		s.ByStatus[k] = v
	}
	for k, v := range o.byCode {
		s.ByCode[k] = v
	}
	s.Fallbacks = o.fallbacks
	return s
}
