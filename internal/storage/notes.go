package storage

import (
	"context"
	"database/sql"

	"github.com/manav03panchal/fintrack/internal/errors"
	"github.com/manav03panchal/fintrack/internal/model"
)

// UpsertNote stores the month's notes in their serialized form.
func (s *Store) UpsertNote(ctx context.Context, monthKey string, value model.NoteValue) error {
	encoded, err := value.Encode()
	if err != nil {
		return errors.NewWriteError("upsert", "note", monthKey, err)
	}
	return s.UpsertRawNote(ctx, monthKey, encoded)
}

// UpsertRawNote stores an already serialized payload unchanged.
func (s *Store) UpsertRawNote(ctx context.Context, monthKey, raw string) error {
	return s.write(ctx, "upsert", "note", monthKey,
		"INSERT OR REPLACE INTO notes (month_year, value) VALUES (?, ?)", monthKey, raw)
}

// DeleteNote removes the month's row.
func (s *Store) DeleteNote(ctx context.Context, monthKey string) error {
	return s.write(ctx, "delete", "note", monthKey,
		"DELETE FROM notes WHERE month_year = ?", monthKey)
}

// ListNotes returns the raw stored payload for every month. The shape is
// not interpreted here. Errors are logged and yield an empty map.
func (s *Store) ListNotes(ctx context.Context) map[string]string {
	notes := map[string]string{}

	db, err := s.Open(ctx)
	if err != nil {
		s.readFailure("list notes", err)
		return notes
	}

	rows, err := db.QueryContext(ctx, "SELECT month_year, value FROM notes")
	if err != nil {
		s.readFailure("list notes", err)
		return notes
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key   string
			value sql.NullString
		)
		if err := rows.Scan(&key, &value); err != nil {
			s.readFailure("scan note", err)
			continue
		}
		notes[key] = value.String
	}
	if err := rows.Err(); err != nil {
		s.readFailure("list notes", err)
	}
	return notes
}
