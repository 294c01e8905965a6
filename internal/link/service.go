package link

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/swiftlink/swiftlink/codegen"
	"github.com/swiftlink/swiftlink/internal/click"
	"github.com/swiftlink/swiftlink/internal/errx"
)

const (
	DefaultCodeLength     = 6
	DefaultCodeMaxRetries = 5
	MinAliasLength        = 3
	MaxAliasLength        = 64
	MaxURLLength          = 2048
)

// CreateRequest represents the parameters for creating a new link.
type CreateRequest struct {
	LongURL     string
	CustomAlias string // optional: if empty, a code is generated
}

// Service defines the link management operations. Every operation takes the
// owner (the verified principal) explicitly; credential verification happens
// at the HTTP boundary, never here.
type Service interface {
	Create(ctx context.Context, ownerID string, req CreateRequest) (Link, error)
	List(ctx context.Context, ownerID string) ([]Link, error)
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
	Clicks(ctx context.Context, ownerID string) (map[string]int64, error)
	Reconcile(ctx context.Context) (int, error)
}

// CacheInvalidator removes a short code from the redirect cache. Deleting a
// link invalidates its cache entry so the stale window is bounded by the
// delete, not only the TTL.
type CacheInvalidator interface {
	Invalidate(code string)
}

// noopInvalidator is used when no redirect cache is wired.
type noopInvalidator struct{}

func (noopInvalidator) Invalidate(string) {}

type service struct {
	store      Store
	clicks     click.Accumulator
	codes      codegen.Generator
	cache      CacheInvalidator
	logger     *slog.Logger
	codeLength int
	maxRetries int
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	CodeGenerator codegen.Generator
	Cache         CacheInvalidator
	Logger        *slog.Logger
	CodeLength    int // generated code length (default: 6)
	CodeRetries   int // insert attempts before giving up (default: 5)
}

// NewService creates a new service instance.
func NewService(store Store, clicks click.Accumulator, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	codes := config.CodeGenerator
	if codes == nil {
		codes = codegen.NewBase62()
	}

	cache := config.Cache
	if cache == nil {
		cache = noopInvalidator{}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	codeLength := config.CodeLength
	if codeLength <= 0 {
		codeLength = DefaultCodeLength
	}

	retries := config.CodeRetries
	if retries <= 0 {
		retries = DefaultCodeMaxRetries
	}

	return &service{
		store:      store,
		clicks:     clicks,
		codes:      codes,
		cache:      cache,
		logger:     logger,
		codeLength: codeLength,
		maxRetries: retries,
	}
}

// Create creates a new short link with an optional custom alias.
func (s *service) Create(ctx context.Context, ownerID string, req CreateRequest) (Link, error) {
	const op = "link.service.Create"

	if ownerID == "" {
		return Link{}, errx.E(op, errx.Unauthorized, errors.New("owner is required"))
	}
	if err := validateLongURL(req.LongURL); err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	var created Link
	var err error

	if req.CustomAlias != "" {
		created, err = s.createWithAlias(ctx, ownerID, req)
	} else {
		created, err = s.createGenerated(ctx, ownerID, req)
	}
	if err != nil {
		return Link{}, err
	}

	// Seed the counter so dashboards see an explicit zero. Failure is
	// tolerated: the accumulator lazily creates counters on first redirect.
	if err := s.clicks.Seed(ctx, created.ShortCode); err != nil {
		s.logger.WarnContext(ctx, "failed to seed click counter",
			"code", created.ShortCode,
			"error", err.Error(),
		)
	}

	return created, nil
}

// createWithAlias claims a caller-chosen code. The insert itself is the
// compare-and-set; no separate existence check could be race-free.
func (s *service) createWithAlias(ctx context.Context, ownerID string, req CreateRequest) (Link, error) {
	const op = "link.service.Create"

	if err := validateAlias(req.CustomAlias); err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	created, err := s.store.Insert(ctx, Link{
		OwnerID:   ownerID,
		LongURL:   req.LongURL,
		ShortCode: req.CustomAlias,
	})
	if err != nil {
		if errx.KindOf(err) == errx.Conflict {
			return Link{}, errx.E(op, errx.Conflict, errors.New("alias already taken"))
		}
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	return created, nil
}

// createGenerated mints codes until the store accepts one, bounded by the
// retry limit. Only Conflict triggers a retry.
func (s *service) createGenerated(ctx context.Context, ownerID string, req CreateRequest) (Link, error) {
	const op = "link.service.Create"

	for range s.maxRetries {
		code, err := s.codes.Generate(s.codeLength)
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}

		created, err := s.store.Insert(ctx, Link{
			OwnerID:   ownerID,
			LongURL:   req.LongURL,
			ShortCode: code,
		})
		if err == nil {
			return created, nil
		}
		if errx.KindOf(err) != errx.Conflict {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
	}

	return Link{}, errx.E(op, errx.Unavailable,
		errors.New("could not allocate a unique short code after retries"))
}

// List returns the owner's links, newest first.
func (s *service) List(ctx context.Context, ownerID string) ([]Link, error) {
	const op = "link.service.List"

	if ownerID == "" {
		return nil, errx.E(op, errx.Unauthorized, errors.New("owner is required"))
	}

	links, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, errx.E(op, errx.KindOf(err), err)
	}
	return links, nil
}

// Delete removes a link the caller owns, invalidates its redirect cache
// entry, and cleans up its counter. Counter cleanup failure does not fail
// the delete: the link record is the authoritative deleted signal and the
// reconcile sweep removes the orphaned counter later.
func (s *service) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	const op = "link.service.Delete"

	if ownerID == "" {
		return errx.E(op, errx.Unauthorized, errors.New("owner is required"))
	}

	l, err := s.store.GetByID(ctx, id)
	if err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}
	if l.OwnerID != ownerID {
		return errx.E(op, errx.Forbidden, errors.New("link belongs to another owner"))
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}

	s.cache.Invalidate(l.ShortCode)

	if err := s.clicks.Remove(ctx, l.ShortCode); err != nil {
		s.logger.WarnContext(ctx, "failed to remove click counter, leaving for reconcile",
			"code", l.ShortCode,
			"error", err.Error(),
		)
	}

	return nil
}

// Clicks returns the code->count mapping for the owner's links. Codes whose
// counter does not exist yet report zero.
func (s *service) Clicks(ctx context.Context, ownerID string) (map[string]int64, error) {
	const op = "link.service.Clicks"

	links, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	codes := make([]string, len(links))
	for i, l := range links {
		codes[i] = l.ShortCode
	}

	counts, err := s.clicks.Counts(ctx, codes)
	if err != nil {
		return nil, errx.E(op, errx.KindOf(err), err)
	}
	return counts, nil
}

// Reconcile sweeps counters whose link no longer exists (failed counter
// cleanup, or a link creation that timed out after seeding). It returns how
// many orphaned counters were removed. Intended to run out-of-band on a
// schedule.
func (s *service) Reconcile(ctx context.Context) (int, error) {
	const op = "link.service.Reconcile"

	codes, err := s.clicks.Codes(ctx)
	if err != nil {
		return 0, errx.E(op, errx.KindOf(err), err)
	}

	removed := 0
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return removed, errx.E(op, errx.Unavailable, err)
		}

		_, err := s.store.GetByCode(ctx, code)
		switch errx.KindOf(err) {
		case errx.Unknown:
			if err != nil {
				return removed, errx.E(op, errx.Internal, err)
			}
			// Link exists; counter is legitimate.
		case errx.NotFound:
			if err := s.clicks.Remove(ctx, code); err != nil {
				s.logger.WarnContext(ctx, "failed to remove orphaned counter",
					"code", code,
					"error", err.Error(),
				)
				continue
			}
			removed++
		default:
			// Storage unavailable: skip, next sweep picks it up.
			s.logger.WarnContext(ctx, "skipping counter during reconcile",
				"code", code,
				"error", err.Error(),
			)
		}
	}

	if removed > 0 {
		s.logger.InfoContext(ctx, "reconcile removed orphaned counters", "count", removed)
	}
	return removed, nil
}

func validateLongURL(raw string) error {
	if raw == "" {
		return errors.New("url cannot be empty")
	}
	if len(raw) > MaxURLLength {
		return errors.New("url too long (max 2048 characters)")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return errors.New("invalid url format")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}
	if parsed.Host == "" {
		return errors.New("url must include host")
	}
	return nil
}

func validateAlias(alias string) error {
	if len(alias) < MinAliasLength {
		return errors.New("alias too short (minimum 3 characters)")
	}
	if len(alias) > MaxAliasLength {
		return errors.New("alias too long (maximum 64 characters)")
	}
	if strings.HasPrefix(alias, "-") || strings.HasPrefix(alias, "_") ||
		strings.HasSuffix(alias, "-") || strings.HasSuffix(alias, "_") {
		return errors.New("alias cannot start or end with dash or underscore")
	}

	for _, c := range alias {
		if !isAliasChar(c) {
			return errors.New("alias contains invalid characters (only alphanumeric, dash, and underscore allowed)")
		}
	}
	return nil
}

func isAliasChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	default:
		return false
	}
}
