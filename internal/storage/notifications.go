package storage

import (
	"context"
	"database/sql"

	"github.com/manav03panchal/fintrack/internal/model"
)

// UpsertNotification inserts n or replaces the row with the same id.
func (s *Store) UpsertNotification(ctx context.Context, n model.Notification) error {
	enabled := 0
	if n.Enabled {
		enabled = 1
	}
	return s.write(ctx, "upsert", "notification", n.ID,
		`INSERT OR REPLACE INTO notifications (id, time, message, enabled, recurrence)
		 VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.Time, n.Message, enabled, string(n.Recurrence))
}

// DeleteNotification removes the reminder row and its persisted fire time.
func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	return s.Batch(ctx, func(ctx context.Context) error {
		if err := s.write(ctx, "delete", "notification", id,
			"DELETE FROM notifications WHERE id = ?", id); err != nil {
			return err
		}
		return s.ClearNextFire(ctx, id)
	})
}

// ListNotifications returns every reminder row. A missing recurrence reads
// as daily. Errors are logged and yield an empty list.
func (s *Store) ListNotifications(ctx context.Context) []model.Notification {
	db, err := s.Open(ctx)
	if err != nil {
		s.readFailure("list notifications", err)
		return []model.Notification{}
	}

	rows, err := db.QueryContext(ctx,
		"SELECT id, time, message, enabled, recurrence FROM notifications ORDER BY time, id")
	if err != nil {
		s.readFailure("list notifications", err)
		return []model.Notification{}
	}
	defer rows.Close()

	out := []model.Notification{}
	for rows.Next() {
		var (
			n                         model.Notification
			hhmm, message, recurrence sql.NullString
			enabled                   sql.NullInt64
		)
		if err := rows.Scan(&n.ID, &hhmm, &message, &enabled, &recurrence); err != nil {
			s.readFailure("scan notification", err)
			continue
		}
		n.Time = hhmm.String
		n.Message = message.String
		n.Enabled = enabled.Int64 != 0
		n.Recurrence = model.Recurrence(recurrence.String)
		if n.Recurrence == "" {
			n.Recurrence = model.RecurDaily
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		s.readFailure("list notifications", err)
	}
	return out
}

// CountNotifications returns the number of reminder rows, reporting errors.
func (s *Store) CountNotifications(ctx context.Context) (int, error) {
	return s.count(ctx, "notifications")
}
