package validate

import (
	"strings"
	"unicode"
)

// SanitizeLabel trims a single-line label such as a category or name and
// drops control characters.
func SanitizeLabel(s string) string {
	s = strings.TrimSpace(s)

	var sb strings.Builder
	for _, r := range s {
		if !unicode.IsControl(r) {
			sb.WriteRune(r)
		}
	}

	return sb.String()
}

// SanitizeNote cleans free text for storage.
func SanitizeNote(note string) string {
	note = strings.TrimSpace(note)

	note = strings.ReplaceAll(note, "\x00", "")

	note = strings.ReplaceAll(note, "\r\n", "\n")
	note = strings.ReplaceAll(note, "\r", "\n")

	return note
}

// StripControlChars removes all control characters except newlines and tabs.
func StripControlChars(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if !unicode.IsControl(r) || r == '\n' || r == '\t' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// TruncateString truncates s to maxLen runes, adding "..." if truncated.
func TruncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
