package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// UserError Tests
// =============================================================================

func TestNewUserError(t *testing.T) {
	err := NewUserError("invalid input", "try again")
	assert.NotNil(t, err)
	assert.Equal(t, "invalid input", err.Message)
	assert.Equal(t, "try again", err.Suggestion)
}

func TestUserErrorError(t *testing.T) {
	t.Run("without_field", func(t *testing.T) {
		err := NewUserError("invalid input", "")
		assert.Equal(t, "invalid input", err.Error())
	})

	t.Run("with_field", func(t *testing.T) {
		err := NewUserErrorWithField("time", "25:00", "invalid time", "")
		assert.Equal(t, "invalid time: '25:00'", err.Error())
	})
}

func TestIsUserError(t *testing.T) {
	t.Run("wrapped_user_error", func(t *testing.T) {
		err := NewUserError("test", "")
		wrapped := fmt.Errorf("context: %w", err)
		assert.True(t, IsUserError(wrapped))
	})

	t.Run("not_user_error", func(t *testing.T) {
		assert.False(t, IsUserError(errors.New("plain error")))
	})

	t.Run("nil_error", func(t *testing.T) {
		assert.False(t, IsUserError(nil))
	})
}

// =============================================================================
// WriteError Tests
// =============================================================================

func TestWriteError(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := NewWriteError("delete", "transaction", "t1", cause)

	assert.Contains(t, err.Error(), "delete transaction \"t1\"")
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsWriteError(fmt.Errorf("action: %w", err)))

	we, ok := AsWriteError(err)
	assert.True(t, ok)
	assert.Equal(t, "t1", we.ID)
}

func TestWriteErrorWithoutID(t *testing.T) {
	err := NewWriteError("set", "setting", "", errors.New("boom"))
	assert.Equal(t, "write failed: set setting: boom", err.Error())
}

func TestSystemError(t *testing.T) {
	err := NewSystemErrorWithOp("open", "cannot open database", ErrStorageUnavailable)
	assert.Equal(t, "cannot open database during open: storage unavailable", err.Error())
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

// =============================================================================
// Classification Tests
// =============================================================================

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, CategoryUnknown},
		{"user", NewUserError("bad", ""), CategoryUser},
		{"write", NewWriteError("upsert", "note", "2024-3", errors.New("x")), CategoryWrite},
		{"storage", fmt.Errorf("open: %w", ErrStorageUnavailable), CategoryStorage},
		{"permission", ErrPermissionDenied, CategoryPermission},
		{"not_booted", ErrNotBooted, CategoryLifecycle},
		{"system", NewSystemError("x", nil), CategoryStorage},
		{"plain", errors.New("plain"), CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "write", CategoryWrite.String())
	assert.Equal(t, "unknown", Category(99).String())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewWriteError("upsert", "transaction", "t1", errors.New("x"))))
	assert.True(t, IsRetryable(ErrNotBooted))
	assert.False(t, IsRetryable(ErrShutdown))
	assert.False(t, IsRetryable(NewUserError("bad", "")))
}

// =============================================================================
// Suggestion Tests
// =============================================================================

func TestGetSuggestion(t *testing.T) {
	assert.Equal(t, "", GetSuggestion(nil))
	assert.Contains(t, GetSuggestion(fmt.Errorf("x: %w", ErrInvalidTime)), "24-hour")
	assert.Equal(t, "fix it", GetSuggestion(NewUserError("bad", "fix it")))
	assert.Equal(t, "Nothing was changed. Try again.",
		GetSuggestion(NewWriteError("upsert", "transaction", "t1", errors.New("x"))))
}

func TestFormatError(t *testing.T) {
	msg := FormatError(ErrNotBooted)
	assert.Contains(t, msg, "not booted")
	assert.Contains(t, msg, "Retry")
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "x"))
	err := Wrapf(ErrNotFound, "transaction %s", "t1")
	assert.Equal(t, "transaction t1: not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
}
