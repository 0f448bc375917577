package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestTryConsume(t *testing.T) {
	l := New(3)

	for i := 0; i < 3; i++ {
		if !l.TryConsume() {
			t.Fatalf("consume %d failed with a full bucket", i)
		}
	}
	if l.TryConsume() {
		t.Error("consume succeeded with an empty bucket")
	}
}

func TestWaitCancellation(t *testing.T) {
	l := New(1)
	if !l.TryConsume() {
		t.Fatal("initial consume failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	if err == nil {
		t.Fatal("Wait returned nil with an empty bucket and expired context")
	}
}

func TestWaitImmediate(t *testing.T) {
	l := New(60)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := l.Wait(ctx); err != nil {
		t.Fatalf("Wait with tokens available: %v", err)
	}
}

func TestBackoffDrainsTokens(t *testing.T) {
	l := New(10)
	l.Backoff()

	if l.TryConsume() {
		t.Error("consume succeeded immediately after backoff")
	}
	st := l.Stats()
	if st.LastRejected.IsZero() {
		t.Error("backoff did not record rejection time")
	}
}

func TestStats(t *testing.T) {
	l := New(10)
	l.TryConsume()
	l.TryConsume()

	st := l.Stats()
	if st.TokensLimit != 10 {
		t.Errorf("limit = %d, want 10", st.TokensLimit)
	}
	if st.TotalConsumed != 2 {
		t.Errorf("consumed = %d, want 2", st.TotalConsumed)
	}
	if st.Utilization <= 0 {
		t.Errorf("utilization = %f, want > 0", st.Utilization)
	}
}

func TestDefaultLimit(t *testing.T) {
	l := New(0)
	if l.Stats().TokensLimit != 150 {
		t.Errorf("default limit = %d, want 150", l.Stats().TokensLimit)
	}
}
