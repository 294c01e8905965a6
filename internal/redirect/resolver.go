// Package redirect implements the public resolution path: short code in,
// long URL out, with a read-through cache and fire-and-forget click
// accounting. It is the only unauthenticated surface besides health.
package redirect

import (
	"context"
	"errors"
	"log/slog"

	"github.com/swiftlink/swiftlink/internal/errx"
	"github.com/swiftlink/swiftlink/internal/link"
)

// Enqueuer schedules a click increment without blocking. Implemented by
// click.Dispatcher.
type Enqueuer interface {
	Enqueue(code string) bool
}

// Resolver resolves short codes to long URLs. Cache hits skip the store
// entirely, which means a just-deleted link may keep redirecting until its
// entry expires or is invalidated; clicks are recorded for whatever resolves.
type Resolver struct {
	store  link.Store
	cache  *Cache
	clicks Enqueuer
	logger *slog.Logger
}

// ResolverConfig holds configuration for the resolver.
type ResolverConfig struct {
	Store  link.Store
	Cache  *Cache
	Clicks Enqueuer
	Logger *slog.Logger
}

// NewResolver creates a new Resolver instance.
func NewResolver(cfg ResolverConfig) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cache := cfg.Cache
	if cache == nil {
		cache = NewCache(0, 0)
	}

	return &Resolver{
		store:  cfg.Store,
		cache:  cache,
		clicks: cfg.Clicks,
		logger: logger,
	}
}

// Resolve returns the long URL for code and records the click. Click
// accounting never fails a resolution.
func (r *Resolver) Resolve(ctx context.Context, code string) (string, error) {
	const op = "redirect.Resolve"

	if code == "" {
		return "", errx.E(op, errx.Invalid, errors.New("code is required"))
	}

	longURL, hit := r.cache.Get(code)
	if !hit {
		l, err := r.store.GetByCode(ctx, code)
		if err != nil {
			if errx.KindOf(err) == errx.NotFound {
				return "", errx.E(op, errx.NotFound, errors.New("short link doesn't exist"))
			}
			return "", errx.E(op, errx.KindOf(err), err)
		}
		longURL = l.LongURL
		r.cache.Add(code, longURL)
	}

	if r.clicks != nil {
		r.clicks.Enqueue(code)
	}

	return longURL, nil
}
