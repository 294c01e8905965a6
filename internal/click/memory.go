package click

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemoryAccumulator is an in-process Accumulator for tests and for running
// without redis. Counter values are atomic so concurrent increments to the
// same code never serialize on the map lock after the counter exists.
type MemoryAccumulator struct {
	mu       sync.RWMutex
	counters map[string]*atomic.Int64
}

// NewMemoryAccumulator creates an empty in-memory accumulator.
func NewMemoryAccumulator() *MemoryAccumulator {
	return &MemoryAccumulator{
		counters: make(map[string]*atomic.Int64),
	}
}

func (a *MemoryAccumulator) counter(code string, create bool) *atomic.Int64 {
	a.mu.RLock()
	c := a.counters[code]
	a.mu.RUnlock()
	if c != nil || !create {
		return c
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if c = a.counters[code]; c == nil {
		c = &atomic.Int64{}
		a.counters[code] = c
	}
	return c
}

func (a *MemoryAccumulator) Increment(ctx context.Context, code string) error {
	a.counter(code, true).Add(1)
	return nil
}

func (a *MemoryAccumulator) Counts(ctx context.Context, codes []string) (map[string]int64, error) {
	out := make(map[string]int64, len(codes))
	for _, code := range codes {
		if c := a.counter(code, false); c != nil {
			out[code] = c.Load()
		} else {
			out[code] = 0
		}
	}
	return out, nil
}

func (a *MemoryAccumulator) Seed(ctx context.Context, code string) error {
	a.counter(code, true)
	return nil
}

func (a *MemoryAccumulator) Remove(ctx context.Context, code string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.counters, code)
	return nil
}

func (a *MemoryAccumulator) Codes(ctx context.Context) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	codes := make([]string, 0, len(a.counters))
	for code := range a.counters {
		codes = append(codes, code)
	}
	return codes, nil
}
