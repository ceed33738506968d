package storage

import (
	"context"
	"database/sql"
	"time"
)

// SaveNextFire records when the reminder's armed timer is due.
func (s *Store) SaveNextFire(ctx context.Context, id string, at time.Time) error {
	return s.write(ctx, "upsert", "schedule", id,
		"INSERT OR REPLACE INTO reminder_schedule (id, next_fire_at) VALUES (?, ?)",
		id, at.UTC().Format(time.RFC3339Nano))
}

// ClearNextFire forgets the reminder's pending fire time.
func (s *Store) ClearNextFire(ctx context.Context, id string) error {
	return s.write(ctx, "delete", "schedule", id,
		"DELETE FROM reminder_schedule WHERE id = ?", id)
}

// LoadNextFires returns every persisted fire time by reminder id.
// Unparsable rows are skipped; errors yield an empty map.
func (s *Store) LoadNextFires(ctx context.Context) map[string]time.Time {
	out := map[string]time.Time{}

	db, err := s.Open(ctx)
	if err != nil {
		s.readFailure("load schedule", err)
		return out
	}

	rows, err := db.QueryContext(ctx, "SELECT id, next_fire_at FROM reminder_schedule")
	if err != nil {
		s.readFailure("load schedule", err)
		return out
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  string
			raw sql.NullString
		)
		if err := rows.Scan(&id, &raw); err != nil {
			s.readFailure("scan schedule", err)
			continue
		}
		at, err := time.Parse(time.RFC3339Nano, raw.String)
		if err != nil {
			s.readFailure("parse schedule "+id, err)
			continue
		}
		out[id] = at
	}
	if err := rows.Err(); err != nil {
		s.readFailure("load schedule", err)
	}
	return out
}
