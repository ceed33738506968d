package storage

import (
	"context"
	"fmt"
	"time"
)

// IntegrityStatus is the result of a database health check.
type IntegrityStatus struct {
	Healthy   bool           `json:"healthy"`
	Backend   string         `json:"backend"`
	LastCheck time.Time      `json:"last_check"`
	Rows      map[string]int `json:"rows"`
	Errors    []string       `json:"errors,omitempty"`
}

// CheckIntegrity runs SQLite's integrity check and counts the rows of
// every table.
func (s *Store) CheckIntegrity(ctx context.Context) *IntegrityStatus {
	status := &IntegrityStatus{
		Healthy:   true,
		Backend:   s.backend.Name(),
		LastCheck: time.Now(),
		Rows:      map[string]int{},
	}

	db, err := s.Open(ctx)
	if err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, err.Error())
		return status
	}

	rows, err := db.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("integrity check: %v", err))
	} else {
		for rows.Next() {
			var line string
			if err := rows.Scan(&line); err != nil {
				status.Errors = append(status.Errors, err.Error())
				continue
			}
			if line != "ok" {
				status.Errors = append(status.Errors, line)
			}
		}
		rows.Close()
	}

	for _, table := range tableNames {
		n, err := s.count(ctx, table)
		if err != nil {
			status.Errors = append(status.Errors, err.Error())
			continue
		}
		status.Rows[table] = n
	}

	if len(status.Errors) > 0 {
		status.Healthy = false
	}
	return status
}
