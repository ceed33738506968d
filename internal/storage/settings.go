package storage

import (
	"context"
	"database/sql"
	"errors"
)

// GetSetting returns the stored value for key, or fallback when the key is
// absent, empty or unreadable.
func (s *Store) GetSetting(ctx context.Context, key, fallback string) string {
	db, err := s.Open(ctx)
	if err != nil {
		s.readFailure("get setting "+key, err)
		return fallback
	}

	var value sql.NullString
	err = db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback
	}
	if err != nil {
		s.readFailure("get setting "+key, err)
		return fallback
	}
	if value.String == "" {
		return fallback
	}
	return value.String
}

// SetSetting stores value under key, replacing any previous value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	return s.write(ctx, "set", "setting", key,
		"INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", key, value)
}
