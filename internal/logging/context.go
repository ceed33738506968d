package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
)

// contextKey is a type for context keys used by this package.
type contextKey int

const (
	actionIDKey contextKey = iota
)

// KeyActionID tags every log line emitted on behalf of one state action.
const KeyActionID = "action_id"

// NewActionID creates a new unique action ID.
// Format: 16 character hex string (8 random bytes).
func NewActionID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "0000000000000000"
	}
	return hex.EncodeToString(b)
}

// WithActionID returns a new context carrying the given action ID.
func WithActionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, actionIDKey, id)
}

// EnsureActionID returns ctx unchanged if it already carries an action ID,
// otherwise a derived context with a fresh one.
func EnsureActionID(ctx context.Context) context.Context {
	if ActionIDFromContext(ctx) != "" {
		return ctx
	}
	return WithActionID(ctx, NewActionID())
}

// ActionIDFromContext extracts the action ID from the context.
// Returns empty string if no action ID is set.
func ActionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(actionIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns a logger carrying the action ID from ctx, if any.
func FromContext(ctx context.Context) *slog.Logger {
	logger := Logger()
	if id := ActionIDFromContext(ctx); id != "" {
		logger = logger.With(KeyActionID, id)
	}
	return logger
}
