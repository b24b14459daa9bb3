package observability

import (
	"context"
	"testing"
)

func TestReviewObserverCounts(t *testing.T) {
	o := NewReviewObserver()
	ctx := context.Background()
	o.RecordOutcome(ctx, "accepted", "", true)
	o.RecordOutcome(ctx, "rejected", "signal_scoring", false)
	o.RecordOutcome(ctx, "failed", "rate_limited", false)
	o.RecordOutcome(ctx, "failed", "rate_limited", false)

	s := o.Snapshot()
	if s.ByStatus["failed"] != 2 || s.ByStatus["accepted"] != 1 {
		t.Fatalf("unexpected status counts %+v", s.ByStatus)
	}
	if s.ByCode["rate_limited"] != 2 || s.ByCode["signal_scoring"] != 1 {
		t.Fatalf("unexpected code counts %+v", s.ByCode)
	}
	if s.Fallbacks != 1 {
		t.Fatalf("expected one fallback accept, got %d", s.Fallbacks)
	}
}

func TestNilReviewObserver(t *testing.T) {
	var o *ReviewObserver
	o.RecordOutcome(context.Background(), "failed", "timeout", false)
	if s := o.Snapshot(); len(s.ByStatus) != 0 {
		t.Fatalf("nil observer should record nothing")
	}
}
