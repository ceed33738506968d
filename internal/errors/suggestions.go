package errors

// Suggestions maps common errors to helpful suggestions.
var Suggestions = map[error]string{
	ErrStorageUnavailable: "Check that the data directory is writable, or point FINTRACK_DB_PATH at another location.",
	ErrPermissionDenied:   "Reminders are still saved. Check the webhook credentials to receive them.",
	ErrNotBooted:          "The data is still loading. Retry in a moment.",
	ErrShutdown:           "FinTrack is shutting down. Start it again to continue.",
	ErrNotFound:           "Use 'fintrack tx ls' or 'fintrack remind ls' to see available ids.",
	ErrInvalidTime:        "Use a 24-hour time like '08:00' or '20:30'.",
	ErrInvalidDate:        "Use a date like '2024-03-15', 'today' or 'yesterday'.",
	ErrInvalidAmount:      "Use a number like '12.50' or '-40'.",
}

// GetSuggestion returns a suggestion for an error, if available.
// It walks the error chain to find matching suggestions.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	if ue, ok := AsUserError(err); ok && ue.Suggestion != "" {
		return ue.Suggestion
	}

	for knownErr, suggestion := range Suggestions {
		if Is(err, knownErr) {
			return suggestion
		}
	}

	if IsWriteError(err) {
		return "Nothing was changed. Try again."
	}
	return ""
}

// FormatError formats an error with its suggestion, if any.
func FormatError(err error) string {
	msg := err.Error()
	if suggestion := GetSuggestion(err); suggestion != "" {
		msg += "\n" + suggestion
	}
	return msg
}
