// Package state holds the application's authoritative in-memory snapshot
// and the actions that are the only sanctioned way to change it.
//
// Every action writes through the schema store first and applies the
// reducer transition only after the write succeeded, so the snapshot never
// shows data that is not durable.
package state

import (
	"github.com/manav03panchal/fintrack/internal/model"
)

// Status is the lifecycle stage of a Store.
type Status int

const (
	// StatusLoading means Boot has not completed.
	StatusLoading Status = iota
	// StatusReady means actions are accepted.
	StatusReady
	// StatusFailed means Boot failed; Err holds the cause.
	StatusFailed
	// StatusShutdown means Shutdown was called.
	StatusShutdown
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	case StatusShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// State is the full application snapshot.
type State struct {
	// Transactions are ordered newest first.
	Transactions  []model.Transaction         `json:"transactions"`
	User          model.User                  `json:"user"`
	Currency      string                      `json:"currency"`
	Theme         string                      `json:"theme"`
	Notes         map[string][]model.NoteItem `json:"notes"`
	Notifications []model.Notification        `json:"notifications"`
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.Transactions = cloneSlice(s.Transactions)
	out.Notifications = cloneSlice(s.Notifications)
	out.Notes = make(map[string][]model.NoteItem, len(s.Notes))
	for k, items := range s.Notes {
		out.Notes[k] = cloneSlice(items)
	}
	return out
}

// Transaction returns the transaction with the given id.
func (s State) Transaction(id string) (model.Transaction, bool) {
	for _, tx := range s.Transactions {
		if tx.ID == id {
			return tx, true
		}
	}
	return model.Transaction{}, false
}

// Notification returns the reminder with the given id.
func (s State) Notification(id string) (model.Notification, bool) {
	for _, n := range s.Notifications {
		if n.ID == id {
			return n, true
		}
	}
	return model.Notification{}, false
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
