package idgen

import (
	"testing"

	"github.com/google/uuid"
)

func TestV7_Generate(t *testing.T) {
	t.Run("generates valid UUID v7", func(t *testing.T) {
		gen := NewV7()

		id, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate() unexpected error: %v", err)
		}
		if id == uuid.Nil {
			t.Fatal("generated UUID is nil")
		}
		if id.Version() != 7 {
			t.Fatalf("UUID version = %d, want 7", id.Version())
		}
	})

	t.Run("generates distinct values (sanity check)", func(t *testing.T) {
		gen := NewV7()

		seen := make(map[uuid.UUID]struct{}, 50)
		for range 50 {
			id, err := gen.Generate()
			if err != nil {
				t.Fatalf("Generate() unexpected error: %v", err)
			}
			if _, ok := seen[id]; ok {
				t.Fatalf("generated duplicate UUID (extremely unlikely): %v", id)
			}
			seen[id] = struct{}{}
		}
	})

	t.Run("accepts custom retry settings", func(t *testing.T) {
		gen := NewV7(WithRetries(0))

		id, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate() unexpected error: %v", err)
		}
		if id.Version() != 7 {
			t.Fatalf("UUID version = %d, want 7", id.Version())
		}
	})
}
