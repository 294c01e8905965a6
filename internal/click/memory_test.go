package click

import (
	"context"
	"maps"
	"sync"
	"testing"
)

func TestMemoryAccumulator_ConcurrentIncrements(t *testing.T) {
	acc := NewMemoryAccumulator()
	ctx := context.Background()

	const (
		goroutines = 100
		perWorker  = 100
	)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if err := acc.Increment(ctx, "abc123"); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	counts, err := acc.Counts(ctx, []string{"abc123"})
	if err != nil {
		t.Fatalf("counts failed: %v", err)
	}
	if got := counts["abc123"]; got != goroutines*perWorker {
		t.Errorf("lost updates: expected %d, got %d", goroutines*perWorker, got)
	}
}

func TestMemoryAccumulator_MissingCodeReadsZero(t *testing.T) {
	acc := NewMemoryAccumulator()

	counts, err := acc.Counts(context.Background(), []string{"ghost1"})
	if err != nil {
		t.Fatalf("counts failed: %v", err)
	}
	if n, ok := counts["ghost1"]; !ok || n != 0 {
		t.Errorf("expected explicit zero, got %d (present=%v)", n, ok)
	}
}

func TestMemoryAccumulator_RepeatedReadsAgree(t *testing.T) {
	acc := NewMemoryAccumulator()
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		if err := acc.Increment(ctx, "abc123"); err != nil {
			t.Fatalf("increment failed: %v", err)
		}
	}
	if err := acc.Increment(ctx, "promo1"); err != nil {
		t.Fatalf("increment failed: %v", err)
	}

	codes := []string{"abc123", "promo1", "ghost1"}
	first, err := acc.Counts(ctx, codes)
	if err != nil {
		t.Fatalf("counts failed: %v", err)
	}
	second, err := acc.Counts(ctx, codes)
	if err != nil {
		t.Fatalf("counts failed: %v", err)
	}

	// Reads must not disturb state: the same query returns the same counts.
	if !maps.Equal(first, second) {
		t.Errorf("counts changed between reads: %v then %v", first, second)
	}
	if first["abc123"] != 7 || first["promo1"] != 1 || first["ghost1"] != 0 {
		t.Errorf("unexpected counts: %v", first)
	}
}

func TestMemoryAccumulator_SeedIsIdempotent(t *testing.T) {
	acc := NewMemoryAccumulator()
	ctx := context.Background()

	if err := acc.Seed(ctx, "abc123"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if err := acc.Increment(ctx, "abc123"); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	// A second seed must not reset the counter.
	if err := acc.Seed(ctx, "abc123"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	counts, err := acc.Counts(ctx, []string{"abc123"})
	if err != nil {
		t.Fatalf("counts failed: %v", err)
	}
	if counts["abc123"] != 1 {
		t.Errorf("expected 1 after re-seed, got %d", counts["abc123"])
	}
}

func TestMemoryAccumulator_Remove(t *testing.T) {
	acc := NewMemoryAccumulator()
	ctx := context.Background()

	if err := acc.Increment(ctx, "abc123"); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if err := acc.Remove(ctx, "abc123"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	// Removing an absent counter is not an error.
	if err := acc.Remove(ctx, "abc123"); err != nil {
		t.Fatalf("second remove failed: %v", err)
	}

	counts, err := acc.Counts(ctx, []string{"abc123"})
	if err != nil {
		t.Fatalf("counts failed: %v", err)
	}
	if counts["abc123"] != 0 {
		t.Errorf("expected zero after removal, got %d", counts["abc123"])
	}
}

func TestMemoryAccumulator_Codes(t *testing.T) {
	acc := NewMemoryAccumulator()
	ctx := context.Background()

	acc.Seed(ctx, "abc123")
	acc.Increment(ctx, "promo1")

	codes, err := acc.Codes(ctx)
	if err != nil {
		t.Fatalf("codes failed: %v", err)
	}
	if len(codes) != 2 {
		t.Errorf("expected 2 codes, got %v", codes)
	}
}
