package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ulritter/freelance-crawler/internal/store"
)

// SettingsStore implements store.SettingsRepository on Postgres.
type SettingsStore struct {
	pool dbConn
}

// NewSettingsStore wraps an existing pool.
func NewSettingsStore(pool dbConn) (*SettingsStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &SettingsStore{pool: pool}, nil
}

// GetSetting loads a value by key.
func (s *SettingsStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

// PutSetting inserts or replaces a value.
func (s *SettingsStore) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO settings (key, value)
VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return fmt.Errorf("put setting: %w", err)
	}
	return nil
}
