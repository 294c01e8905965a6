package link

import (
	"context"

	"github.com/google/uuid"
)

// Store is the durable mapping from short code to link record. It owns the
// short-code uniqueness invariant: Insert must behave as a single
// compare-and-set on the code, returning a Conflict error when the code is
// already claimed. All other operations are independent per key.
type Store interface {
	// Insert persists a new record. Fails with Conflict when the short code
	// already exists.
	Insert(ctx context.Context, l Link) (Link, error)

	// GetByCode fetches the record for a short code. Fails with NotFound.
	GetByCode(ctx context.Context, code string) (Link, error)

	// GetByID fetches a record by its ID. Fails with NotFound.
	GetByID(ctx context.Context, id uuid.UUID) (Link, error)

	// ListByOwner returns the owner's records, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]Link, error)

	// Delete removes a record by ID. Fails with NotFound when absent.
	Delete(ctx context.Context, id uuid.UUID) error
}
