package link

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swiftlink/swiftlink/internal/errx"
)

// MemStore is an in-memory Store for tests and local development. It honors
// the same error contract as the postgres store, including the
// compare-and-set semantics of Insert under concurrent use.
type MemStore struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]Link
	byCode map[string]uuid.UUID
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		byID:   make(map[uuid.UUID]Link),
		byCode: make(map[string]uuid.UUID),
	}
}

var errNoSuchLink = errors.New("no such link")

func (s *MemStore) Insert(ctx context.Context, l Link) (Link, error) {
	const op = "link.memstore.Insert"

	if err := ctx.Err(); err != nil {
		return Link{}, errx.E(op, errx.Unavailable, err)
	}

	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byCode[l.ShortCode]; taken {
		return Link{}, errx.E(op, errx.Conflict, errors.New("short code already exists"))
	}

	s.byID[l.ID] = l
	s.byCode[l.ShortCode] = l.ID
	return l, nil
}

func (s *MemStore) GetByCode(ctx context.Context, code string) (Link, error) {
	const op = "link.memstore.GetByCode"

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCode[code]
	if !ok {
		return Link{}, errx.E(op, errx.NotFound, errNoSuchLink)
	}
	return s.byID[id], nil
}

func (s *MemStore) GetByID(ctx context.Context, id uuid.UUID) (Link, error) {
	const op = "link.memstore.GetByID"

	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.byID[id]
	if !ok {
		return Link{}, errx.E(op, errx.NotFound, errNoSuchLink)
	}
	return l, nil
}

func (s *MemStore) ListByOwner(ctx context.Context, ownerID string) ([]Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	links := []Link{}
	for _, l := range s.byID {
		if l.OwnerID == ownerID {
			links = append(links, l)
		}
	}

	sort.Slice(links, func(i, j int) bool {
		if !links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].CreatedAt.After(links[j].CreatedAt)
		}
		return links[i].ID.String() > links[j].ID.String()
	})

	return links, nil
}

func (s *MemStore) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "link.memstore.Delete"

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.byID[id]
	if !ok {
		return errx.E(op, errx.NotFound, errNoSuchLink)
	}

	delete(s.byID, id)
	delete(s.byCode, l.ShortCode)
	return nil
}
