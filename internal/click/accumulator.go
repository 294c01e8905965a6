// Package click implements click accounting for short codes: durable,
// concurrency-safe counters plus the fire-and-forget dispatcher that keeps
// redirect latency decoupled from counter durability.
package click

import "context"

// Accumulator owns counter state keyed by short code. Increments must be
// commutative and associative so concurrent increments never lose updates;
// a counter may exist before its link record is visible (and vice versa)
// to tolerate race windows. Reads are eventually consistent.
type Accumulator interface {
	// Increment adds one to the counter for code, creating it at zero first
	// if needed.
	Increment(ctx context.Context, code string) error

	// Counts returns the counter values for the given codes. Codes with no
	// counter map to 0.
	Counts(ctx context.Context, codes []string) (map[string]int64, error)

	// Seed creates a zero-valued counter for code. It is an idempotent no-op
	// when the counter already exists.
	Seed(ctx context.Context, code string) error

	// Remove deletes the counter for code. Removing an absent counter is not
	// an error.
	Remove(ctx context.Context, code string) error

	// Codes lists every code with a counter, for the reconcile sweep.
	Codes(ctx context.Context) ([]string, error)
}
