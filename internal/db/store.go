package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

type Preference struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

func OpenSQLite(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	database.SetMaxOpenConns(1)
	database.SetConnMaxLifetime(0)

	store := &Store{db: database}
	if err := store.migrate(context.Background()); err != nil {
		database.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS preferences (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at DATETIME NOT NULL
);
`
	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return nil
}

func (s *Store) GetPreference(ctx context.Context, key string) (Preference, error) {
	var pref Preference
	err := s.db.QueryRowContext(ctx, `
SELECT key, value, updated_at
FROM preferences
WHERE key = ?`, key).Scan(&pref.Key, &pref.Value, &pref.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Preference{}, ErrNotFound
	}
	if err != nil {
		return Preference{}, fmt.Errorf("get preference: %w", err)
	}
	return pref, nil
}

func (s *Store) SetPreference(ctx context.Context, key, value string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO preferences (key, value, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
value = excluded.value,
updated_at = excluded.updated_at`, key, value, now)
	if err != nil {
		return fmt.Errorf("set preference: %w", err)
	}
	return nil
}

func (s *Store) DeletePreference(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, `
DELETE FROM preferences
WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete preference: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListPreferences(ctx context.Context) ([]Preference, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT key, value, updated_at
FROM preferences
ORDER BY key ASC`)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	defer rows.Close()

	prefs := make([]Preference, 0, 4)
	for rows.Next() {
		var pref Preference
		if err := rows.Scan(&pref.Key, &pref.Value, &pref.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		prefs = append(prefs, pref)
	}
	return prefs, rows.Err()
}
