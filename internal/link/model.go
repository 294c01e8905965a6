package link

import (
	"time"

	"github.com/google/uuid"
)

// Link is a short-code to destination mapping. Every field is immutable once
// the record exists; there is no edit operation.
type Link struct {
	ID        uuid.UUID
	OwnerID   string
	LongURL   string
	ShortCode string
	CreatedAt time.Time
}
