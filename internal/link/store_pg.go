package link

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swiftlink/swiftlink/internal/errx"
	"github.com/swiftlink/swiftlink/internal/idgen"
)

// shortCodeConstraint is the unique constraint enforcing the code invariant;
// must match the migration.
const shortCodeConstraint = "links_short_code_key"

// PGStore implements Store on PostgreSQL. Uniqueness is enforced by the
// database constraint so a concurrent insert race resolves to exactly one
// winner and a Conflict for everyone else.
type PGStore struct {
	pool    *pgxpool.Pool
	ids     idgen.Generator
	timeout time.Duration
}

// PGStoreConfig holds configuration for the postgres store.
type PGStoreConfig struct {
	IDGenerator idgen.Generator
	// OpTimeout caps each store call on top of the caller's context.
	// Zero disables the ceiling.
	OpTimeout time.Duration
}

// NewPGStore creates a postgres-backed Store.
func NewPGStore(pool *pgxpool.Pool, config *PGStoreConfig) *PGStore {
	if config == nil {
		config = &PGStoreConfig{}
	}

	ids := config.IDGenerator
	if ids == nil {
		// UUID v7 keeps the primary key index append-mostly.
		ids = idgen.NewV7()
	}

	return &PGStore{
		pool:    pool,
		ids:     ids,
		timeout: config.OpTimeout,
	}
}

func (s *PGStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func isShortCodeViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == shortCodeConstraint
}

func mapStoreError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)
	case isShortCodeViolation(err):
		return errx.E(op, errx.Conflict, err)
	case errors.Is(err, context.DeadlineExceeded):
		return errx.E(op, errx.Unavailable, err)
	default:
		// Timeouts are worth retrying (503); anything else from the
		// database is a plain server fault (500).
		return errx.E(op, errx.Internal, err)
	}
}

func (s *PGStore) Insert(ctx context.Context, l Link) (Link, error) {
	const op = "link.store.Insert"

	if l.ID == uuid.Nil {
		id, err := s.ids.Generate()
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}
		l.ID = id
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	row := s.pool.QueryRow(ctx, `
		INSERT INTO links (id, owner_id, long_url, short_code)
		VALUES ($1, $2, $3, $4)
		RETURNING id, owner_id, long_url, short_code, created_at`,
		l.ID, l.OwnerID, l.LongURL, l.ShortCode,
	)

	var out Link
	if err := row.Scan(&out.ID, &out.OwnerID, &out.LongURL, &out.ShortCode, &out.CreatedAt); err != nil {
		return Link{}, mapStoreError(op, err)
	}
	return out, nil
}

func (s *PGStore) GetByCode(ctx context.Context, code string) (Link, error) {
	const op = "link.store.GetByCode"

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	row := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, long_url, short_code, created_at
		FROM links
		WHERE short_code = $1`,
		code,
	)

	var out Link
	if err := row.Scan(&out.ID, &out.OwnerID, &out.LongURL, &out.ShortCode, &out.CreatedAt); err != nil {
		return Link{}, mapStoreError(op, err)
	}
	return out, nil
}

func (s *PGStore) GetByID(ctx context.Context, id uuid.UUID) (Link, error) {
	const op = "link.store.GetByID"

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	row := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, long_url, short_code, created_at
		FROM links
		WHERE id = $1`,
		id,
	)

	var out Link
	if err := row.Scan(&out.ID, &out.OwnerID, &out.LongURL, &out.ShortCode, &out.CreatedAt); err != nil {
		return Link{}, mapStoreError(op, err)
	}
	return out, nil
}

func (s *PGStore) ListByOwner(ctx context.Context, ownerID string) ([]Link, error) {
	const op = "link.store.ListByOwner"

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, long_url, short_code, created_at
		FROM links
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, mapStoreError(op, err)
	}
	defer rows.Close()

	links := []Link{}
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.ID, &l.OwnerID, &l.LongURL, &l.ShortCode, &l.CreatedAt); err != nil {
			return nil, mapStoreError(op, err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreError(op, err)
	}

	return links, nil
}

func (s *PGStore) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "link.store.Delete"

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `DELETE FROM links WHERE id = $1`, id)
	if err != nil {
		return mapStoreError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return errx.E(op, errx.NotFound, pgx.ErrNoRows)
	}
	return nil
}
