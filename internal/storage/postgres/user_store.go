package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ulritter/freelance-crawler/internal/store"
)

// UserStore implements store.UserRepository and store.AuthCodeRepository on
// Postgres.
type UserStore struct {
	pool dbConn
}

// NewUserStore wraps an existing pool.
func NewUserStore(pool dbConn) (*UserStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &UserStore{pool: pool}, nil
}

// GetUserByEmail loads a user by email.
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	var u store.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, created_at, last_login FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &u.CreatedAt, &u.LastLogin)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.User{}, store.ErrNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// EnsureUser inserts the user when missing and returns the stored record.
func (s *UserStore) EnsureUser(ctx context.Context, email string) (store.User, error) {
	var u store.User
	err := s.pool.QueryRow(ctx, `
INSERT INTO users (email, created_at)
VALUES ($1, NOW())
ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
RETURNING id, email, created_at, last_login`, email,
	).Scan(&u.ID, &u.Email, &u.CreatedAt, &u.LastLogin)
	if err != nil {
		return store.User{}, fmt.Errorf("ensure user: %w", err)
	}
	return u, nil
}

// TouchLastLogin records a successful sign-in.
func (s *UserStore) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SaveCode stores a freshly issued login code.
func (s *UserStore) SaveCode(ctx context.Context, c store.AuthCode) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO auth_codes (email, code, expires_at, used)
VALUES ($1, $2, $3, FALSE)`, c.Email, c.Code, c.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save auth code: %w", err)
	}
	return nil
}

// ConsumeCode atomically marks a matching, unused, unexpired code as used.
func (s *UserStore) ConsumeCode(ctx context.Context, email, code string, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE auth_codes
SET used = TRUE
WHERE email = $1 AND code = $2 AND NOT used AND expires_at > $3`, email, code, now)
	if err != nil {
		return fmt.Errorf("consume auth code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// PurgeExpired deletes codes past their expiry.
func (s *UserStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM auth_codes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge auth codes: %w", err)
	}
	return tag.RowsAffected(), nil
}
