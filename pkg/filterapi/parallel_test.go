package filterapi

import (
	"context"
	"errors"
	"testing"
)

func TestParallelForCoversEveryIndexOnce(t *testing.T) {
	hits := make([]int, 1003)
	err := ParallelFor(context.Background(), len(hits), 10, func(_ context.Context, start, end int) error {
		for i := start; i < end; i++ {
			hits[i]++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("parallel for: %v", err)
	}
	for i, h := range hits {
		if h != 1 {
			t.Fatalf("index %d visited %d times", i, h)
		}
	}
}

func TestParallelForReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	err := ParallelFor(context.Background(), 100, 0, func(_ context.Context, start, _ int) error {
		if start == 0 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestParallelForCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := ParallelFor(ctx, 100, 1, func(context.Context, int, int) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if called {
		t.Fatalf("no range should run after cancellation")
	}
}
