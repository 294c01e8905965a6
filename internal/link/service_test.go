package link

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/swiftlink/swiftlink/internal/errx"
)

type mockStore struct {
	insertFunc      func(ctx context.Context, l Link) (Link, error)
	getByCodeFunc   func(ctx context.Context, code string) (Link, error)
	getByIDFunc     func(ctx context.Context, id uuid.UUID) (Link, error)
	listByOwnerFunc func(ctx context.Context, ownerID string) ([]Link, error)
	deleteFunc      func(ctx context.Context, id uuid.UUID) error
}

func (m *mockStore) Insert(ctx context.Context, l Link) (Link, error) {
	return m.insertFunc(ctx, l)
}

func (m *mockStore) GetByCode(ctx context.Context, code string) (Link, error) {
	return m.getByCodeFunc(ctx, code)
}

func (m *mockStore) GetByID(ctx context.Context, id uuid.UUID) (Link, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockStore) ListByOwner(ctx context.Context, ownerID string) ([]Link, error) {
	return m.listByOwnerFunc(ctx, ownerID)
}

func (m *mockStore) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

type mockAccumulator struct {
	incrementFunc func(ctx context.Context, code string) error
	countsFunc    func(ctx context.Context, codes []string) (map[string]int64, error)
	seedFunc      func(ctx context.Context, code string) error
	removeFunc    func(ctx context.Context, code string) error
	codesFunc     func(ctx context.Context) ([]string, error)
}

func (m *mockAccumulator) Increment(ctx context.Context, code string) error {
	if m.incrementFunc == nil {
		return nil
	}
	return m.incrementFunc(ctx, code)
}

func (m *mockAccumulator) Counts(ctx context.Context, codes []string) (map[string]int64, error) {
	return m.countsFunc(ctx, codes)
}

func (m *mockAccumulator) Seed(ctx context.Context, code string) error {
	if m.seedFunc == nil {
		return nil
	}
	return m.seedFunc(ctx, code)
}

func (m *mockAccumulator) Remove(ctx context.Context, code string) error {
	if m.removeFunc == nil {
		return nil
	}
	return m.removeFunc(ctx, code)
}

func (m *mockAccumulator) Codes(ctx context.Context) ([]string, error) {
	return m.codesFunc(ctx)
}

type stubGenerator struct {
	codes []string
	calls int
	err   error
}

func (g *stubGenerator) Generate(length int) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	code := g.codes[g.calls%len(g.codes)]
	g.calls++
	return code, nil
}

type recordingInvalidator struct {
	codes []string
}

func (r *recordingInvalidator) Invalidate(code string) {
	r.codes = append(r.codes, code)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestService_Create_GeneratedCode(t *testing.T) {
	store := &mockStore{
		insertFunc: func(ctx context.Context, l Link) (Link, error) {
			l.ID = uuid.New()
			return l, nil
		},
	}
	gen := &stubGenerator{codes: []string{"abc123"}}
	seeded := ""
	acc := &mockAccumulator{
		seedFunc: func(ctx context.Context, code string) error {
			seeded = code
			return nil
		},
	}

	svc := NewService(store, acc, &ServiceConfig{
		CodeGenerator: gen,
		Logger:        discardLogger(),
	})

	created, err := svc.Create(context.Background(), "user-1", CreateRequest{
		LongURL: "https://example.com/page",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if created.ShortCode != "abc123" {
		t.Errorf("expected short code 'abc123', got %q", created.ShortCode)
	}
	if created.OwnerID != "user-1" {
		t.Errorf("expected owner 'user-1', got %q", created.OwnerID)
	}
	if seeded != "abc123" {
		t.Errorf("expected counter seeded for 'abc123', got %q", seeded)
	}
}

func TestService_Create_CustomAlias(t *testing.T) {
	var inserted Link
	store := &mockStore{
		insertFunc: func(ctx context.Context, l Link) (Link, error) {
			inserted = l
			l.ID = uuid.New()
			return l, nil
		},
	}

	svc := NewService(store, &mockAccumulator{}, &ServiceConfig{Logger: discardLogger()})

	created, err := svc.Create(context.Background(), "user-1", CreateRequest{
		LongURL:     "https://example.com/summer-sale",
		CustomAlias: "promo1",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if created.ShortCode != "promo1" {
		t.Errorf("expected short code 'promo1', got %q", created.ShortCode)
	}
	if inserted.ShortCode != "promo1" {
		t.Errorf("expected insert with alias 'promo1', got %q", inserted.ShortCode)
	}
}

func TestService_Create_PreservesQueryAndFragment(t *testing.T) {
	const longURL = "https://example.com/search?q=summer+sale&page=2#results"

	var inserted Link
	store := &mockStore{
		insertFunc: func(ctx context.Context, l Link) (Link, error) {
			inserted = l
			l.ID = uuid.New()
			return l, nil
		},
	}

	svc := NewService(store, &mockAccumulator{}, &ServiceConfig{
		CodeGenerator: &stubGenerator{codes: []string{"abc123"}},
		Logger:        discardLogger(),
	})

	created, err := svc.Create(context.Background(), "user-1", CreateRequest{
		LongURL: longURL,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	// The URL is stored as given: no normalization, no stripped fragment.
	if inserted.LongURL != longURL {
		t.Errorf("stored URL %q, want %q", inserted.LongURL, longURL)
	}
	if created.LongURL != longURL {
		t.Errorf("returned URL %q, want %q", created.LongURL, longURL)
	}
}

func TestService_Create_AliasTaken(t *testing.T) {
	store := &mockStore{
		insertFunc: func(ctx context.Context, l Link) (Link, error) {
			return Link{}, errx.E("link.pgstore.Insert", errx.Conflict, errors.New("duplicate short code"))
		},
	}

	svc := NewService(store, &mockAccumulator{}, &ServiceConfig{Logger: discardLogger()})

	_, err := svc.Create(context.Background(), "user-2", CreateRequest{
		LongURL:     "https://example.com/other",
		CustomAlias: "promo1",
	})
	if err == nil {
		t.Fatal("expected error for taken alias, got nil")
	}
	if kind := errx.KindOf(err); kind != errx.Conflict {
		t.Errorf("expected Conflict, got %v", kind)
	}
}

func TestService_Create_RetriesOnCollision(t *testing.T) {
	attempts := 0
	store := &mockStore{
		insertFunc: func(ctx context.Context, l Link) (Link, error) {
			attempts++
			if attempts < 3 {
				return Link{}, errx.E("link.pgstore.Insert", errx.Conflict, errors.New("duplicate short code"))
			}
			l.ID = uuid.New()
			return l, nil
		},
	}
	gen := &stubGenerator{codes: []string{"first1", "second", "third3"}}

	svc := NewService(store, &mockAccumulator{}, &ServiceConfig{
		CodeGenerator: gen,
		Logger:        discardLogger(),
	})

	created, err := svc.Create(context.Background(), "user-1", CreateRequest{
		LongURL: "https://example.com",
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if created.ShortCode != "third3" {
		t.Errorf("expected short code 'third3', got %q", created.ShortCode)
	}
	if attempts != 3 {
		t.Errorf("expected 3 insert attempts, got %d", attempts)
	}
}

func TestService_Create_RetriesExhausted(t *testing.T) {
	attempts := 0
	store := &mockStore{
		insertFunc: func(ctx context.Context, l Link) (Link, error) {
			attempts++
			return Link{}, errx.E("link.pgstore.Insert", errx.Conflict, errors.New("duplicate short code"))
		},
	}
	gen := &stubGenerator{codes: []string{"same00"}}

	svc := NewService(store, &mockAccumulator{}, &ServiceConfig{
		CodeGenerator: gen,
		CodeRetries:   4,
		Logger:        discardLogger(),
	})

	_, err := svc.Create(context.Background(), "user-1", CreateRequest{
		LongURL: "https://example.com",
	})
	if err == nil {
		t.Fatal("expected error after retry exhaustion, got nil")
	}
	if kind := errx.KindOf(err); kind != errx.Unavailable {
		t.Errorf("expected Unavailable, got %v", kind)
	}
	if attempts != 4 {
		t.Errorf("expected 4 insert attempts, got %d", attempts)
	}
}

func TestService_Create_InvalidURL(t *testing.T) {
	store := &mockStore{
		insertFunc: func(ctx context.Context, l Link) (Link, error) {
			t.Fatal("insert should not be called for invalid input")
			return Link{}, nil
		},
	}

	svc := NewService(store, &mockAccumulator{}, &ServiceConfig{Logger: discardLogger()})

	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"no scheme", "example.com/page"},
		{"ftp scheme", "ftp://example.com/file"},
		{"no host", "https://"},
		{"relative path", "/just/a/path"},
		{"too long", "https://example.com/" + strings.Repeat("a", MaxURLLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "user-1", CreateRequest{LongURL: tt.url})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if kind := errx.KindOf(err); kind != errx.Invalid {
				t.Errorf("expected Invalid, got %v", kind)
			}
		})
	}
}

func TestService_Create_InvalidAlias(t *testing.T) {
	store := &mockStore{
		insertFunc: func(ctx context.Context, l Link) (Link, error) {
			t.Fatal("insert should not be called for invalid input")
			return Link{}, nil
		},
	}

	svc := NewService(store, &mockAccumulator{}, &ServiceConfig{Logger: discardLogger()})

	tests := []struct {
		name  string
		alias string
	}{
		{"too short", "ab"},
		{"too long", strings.Repeat("x", MaxAliasLength+1)},
		{"spaces", "my alias"},
		{"slash", "a/b/c"},
		{"leading dash", "-promo"},
		{"trailing underscore", "promo_"},
		{"unicode", "promó1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "user-1", CreateRequest{
				LongURL:     "https://example.com",
				CustomAlias: tt.alias,
			})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if kind := errx.KindOf(err); kind != errx.Invalid {
				t.Errorf("expected Invalid, got %v", kind)
			}
		})
	}
}

func TestService_Create_SeedFailureTolerated(t *testing.T) {
	store := &mockStore{
		insertFunc: func(ctx context.Context, l Link) (Link, error) {
			l.ID = uuid.New()
			return l, nil
		},
	}
	acc := &mockAccumulator{
		seedFunc: func(ctx context.Context, code string) error {
			return errx.E("click.redis.Seed", errx.Unavailable, errors.New("connection refused"))
		},
	}

	svc := NewService(store, acc, &ServiceConfig{Logger: discardLogger()})

	_, err := svc.Create(context.Background(), "user-1", CreateRequest{
		LongURL: "https://example.com",
	})
	if err != nil {
		t.Fatalf("seed failure must not fail creation, got %v", err)
	}
}

func TestService_Delete(t *testing.T) {
	id := uuid.New()
	link := Link{ID: id, OwnerID: "user-1", ShortCode: "abc123", LongURL: "https://example.com"}

	t.Run("owner deletes own link", func(t *testing.T) {
		deleted := false
		removed := ""
		store := &mockStore{
			getByIDFunc: func(ctx context.Context, gotID uuid.UUID) (Link, error) {
				if gotID != id {
					t.Errorf("expected lookup of %s, got %s", id, gotID)
				}
				return link, nil
			},
			deleteFunc: func(ctx context.Context, gotID uuid.UUID) error {
				deleted = true
				return nil
			},
		}
		acc := &mockAccumulator{
			removeFunc: func(ctx context.Context, code string) error {
				removed = code
				return nil
			},
		}
		cache := &recordingInvalidator{}

		svc := NewService(store, acc, &ServiceConfig{Cache: cache, Logger: discardLogger()})

		if err := svc.Delete(context.Background(), "user-1", id); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !deleted {
			t.Error("expected store delete to be called")
		}
		if removed != "abc123" {
			t.Errorf("expected counter removal for 'abc123', got %q", removed)
		}
		if len(cache.codes) != 1 || cache.codes[0] != "abc123" {
			t.Errorf("expected cache invalidation for 'abc123', got %v", cache.codes)
		}
	})

	t.Run("forbidden for other owner", func(t *testing.T) {
		store := &mockStore{
			getByIDFunc: func(ctx context.Context, gotID uuid.UUID) (Link, error) {
				return link, nil
			},
			deleteFunc: func(ctx context.Context, gotID uuid.UUID) error {
				t.Fatal("delete should not be called")
				return nil
			},
		}

		svc := NewService(store, &mockAccumulator{}, &ServiceConfig{Logger: discardLogger()})

		err := svc.Delete(context.Background(), "user-2", id)
		if kind := errx.KindOf(err); kind != errx.Forbidden {
			t.Errorf("expected Forbidden, got %v", kind)
		}
	})

	t.Run("not found", func(t *testing.T) {
		store := &mockStore{
			getByIDFunc: func(ctx context.Context, gotID uuid.UUID) (Link, error) {
				return Link{}, errx.E("link.pgstore.GetByID", errx.NotFound, errors.New("link not found"))
			},
		}

		svc := NewService(store, &mockAccumulator{}, &ServiceConfig{Logger: discardLogger()})

		err := svc.Delete(context.Background(), "user-1", id)
		if kind := errx.KindOf(err); kind != errx.NotFound {
			t.Errorf("expected NotFound, got %v", kind)
		}
	})

	t.Run("counter removal failure tolerated", func(t *testing.T) {
		store := &mockStore{
			getByIDFunc: func(ctx context.Context, gotID uuid.UUID) (Link, error) {
				return link, nil
			},
			deleteFunc: func(ctx context.Context, gotID uuid.UUID) error {
				return nil
			},
		}
		acc := &mockAccumulator{
			removeFunc: func(ctx context.Context, code string) error {
				return errx.E("click.redis.Remove", errx.Unavailable, errors.New("connection refused"))
			},
		}

		svc := NewService(store, acc, &ServiceConfig{Logger: discardLogger()})

		if err := svc.Delete(context.Background(), "user-1", id); err != nil {
			t.Fatalf("counter removal failure must not fail delete, got %v", err)
		}
	})
}

func TestService_Clicks(t *testing.T) {
	store := &mockStore{
		listByOwnerFunc: func(ctx context.Context, ownerID string) ([]Link, error) {
			return []Link{
				{ID: uuid.New(), OwnerID: ownerID, ShortCode: "abc123"},
				{ID: uuid.New(), OwnerID: ownerID, ShortCode: "promo1"},
			}, nil
		},
	}
	acc := &mockAccumulator{
		countsFunc: func(ctx context.Context, codes []string) (map[string]int64, error) {
			if len(codes) != 2 {
				t.Errorf("expected 2 codes, got %v", codes)
			}
			return map[string]int64{"abc123": 42, "promo1": 0}, nil
		},
	}

	svc := NewService(store, acc, &ServiceConfig{Logger: discardLogger()})

	counts, err := svc.Clicks(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if counts["abc123"] != 42 {
		t.Errorf("expected 42 clicks for 'abc123', got %d", counts["abc123"])
	}
	if counts["promo1"] != 0 {
		t.Errorf("expected 0 clicks for 'promo1', got %d", counts["promo1"])
	}
}

func TestService_Reconcile(t *testing.T) {
	removed := make([]string, 0)
	store := &mockStore{
		getByCodeFunc: func(ctx context.Context, code string) (Link, error) {
			if code == "live01" {
				return Link{ShortCode: code}, nil
			}
			return Link{}, errx.E("link.pgstore.GetByCode", errx.NotFound, errors.New("link not found"))
		},
	}
	acc := &mockAccumulator{
		codesFunc: func(ctx context.Context) ([]string, error) {
			return []string{"live01", "orphan", "stale1"}, nil
		},
		removeFunc: func(ctx context.Context, code string) error {
			removed = append(removed, code)
			return nil
		},
	}

	svc := NewService(store, acc, &ServiceConfig{Logger: discardLogger()})

	n, err := svc.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 removals, got %d", n)
	}
	if len(removed) != 2 {
		t.Errorf("expected removals for orphaned codes, got %v", removed)
	}
	for _, code := range removed {
		if code == "live01" {
			t.Error("live counter must not be removed")
		}
	}
}

func TestService_List_RequiresOwner(t *testing.T) {
	svc := NewService(&mockStore{}, &mockAccumulator{}, &ServiceConfig{Logger: discardLogger()})

	_, err := svc.List(context.Background(), "")
	if kind := errx.KindOf(err); kind != errx.Unauthorized {
		t.Errorf("expected Unauthorized, got %v", kind)
	}
}
