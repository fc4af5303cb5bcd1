// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ulritter/freelance-crawler/internal/store"
)

const defaultListLimit = 100

// dbConn is the subset of pgxpool.Pool used by the stores. pgxmock satisfies
// it in tests.
type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PoolConfig controls the shared Postgres connection pool.
type PoolConfig struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// NewPool builds a pgx connection pool from the config.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// ListingStore implements store.ListingRepository on Postgres.
type ListingStore struct {
	pool dbConn
}

// NewListingStore wraps an existing pool.
func NewListingStore(pool dbConn) (*ListingStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ListingStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *ListingStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// UpsertListing inserts the listing keyed by link, refreshing mutable fields
// and last_seen on conflict. xmax = 0 distinguishes a fresh insert from an
// update of an existing row.
func (s *ListingStore) UpsertListing(ctx context.Context, l store.Listing) (store.UpsertResult, error) {
	if l.Link == "" {
		return store.UpsertResult{}, fmt.Errorf("listing link is required")
	}
	query := `
INSERT INTO listings (site, title, link, company, location, posted, query, first_seen, last_seen)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
ON CONFLICT (link) DO UPDATE
SET title = EXCLUDED.title,
	company = EXCLUDED.company,
	location = EXCLUDED.location,
	posted = EXCLUDED.posted,
	last_seen = EXCLUDED.last_seen
RETURNING (xmax = 0) AS inserted`

	seen := l.LastSeen
	if seen.IsZero() {
		seen = time.Now().UTC()
	}
	var inserted bool
	err := s.pool.QueryRow(ctx, query,
		l.Site, l.Title, l.Link, l.Company, l.Location, l.Posted, l.Query, seen,
	).Scan(&inserted)
	if err != nil {
		return store.UpsertResult{}, fmt.Errorf("upsert listing: %w", err)
	}
	return store.UpsertResult{Inserted: inserted}, nil
}

// ListListings returns listings newest first, applying the filter.
func (s *ListingStore) ListListings(ctx context.Context, f store.ListingFilter) ([]store.Listing, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `
SELECT id, site, title, link, company, location, posted, query, processed, first_seen, last_seen
FROM listings
WHERE ($1 = '' OR site = $1)
  AND (NOT $2 OR NOT processed)
ORDER BY last_seen DESC, id DESC
LIMIT $3 OFFSET $4`

	rows, err := s.pool.Query(ctx, query, f.Site, f.Unprocessed, limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var out []store.Listing
	for rows.Next() {
		var l store.Listing
		if err := rows.Scan(
			&l.ID, &l.Site, &l.Title, &l.Link, &l.Company, &l.Location,
			&l.Posted, &l.Query, &l.Processed, &l.FirstSeen, &l.LastSeen,
		); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return out, nil
}

// GetListing loads one listing by id.
func (s *ListingStore) GetListing(ctx context.Context, id int64) (store.Listing, error) {
	query := `
SELECT id, site, title, link, company, location, posted, query, processed, first_seen, last_seen
FROM listings
WHERE id = $1`

	var l store.Listing
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&l.ID, &l.Site, &l.Title, &l.Link, &l.Company, &l.Location,
		&l.Posted, &l.Query, &l.Processed, &l.FirstSeen, &l.LastSeen,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Listing{}, store.ErrNotFound
	}
	if err != nil {
		return store.Listing{}, fmt.Errorf("get listing: %w", err)
	}
	return l, nil
}

// SetProcessed flips the processed flag.
func (s *ListingStore) SetProcessed(ctx context.Context, id int64, processed bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE listings SET processed = $2 WHERE id = $1`, id, processed)
	if err != nil {
		return fmt.Errorf("set processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Stats aggregates listing counts per site.
func (s *ListingStore) Stats(ctx context.Context) ([]store.SiteCount, error) {
	query := `
SELECT site, COUNT(*) AS total, COUNT(*) FILTER (WHERE NOT processed) AS new
FROM listings
GROUP BY site
ORDER BY site`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing stats: %w", err)
	}
	defer rows.Close()

	var out []store.SiteCount
	for rows.Next() {
		var c store.SiteCount
		if err := rows.Scan(&c.Site, &c.Total, &c.New); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}
	return out, nil
}
