package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// MaskChar is the character used for masking.
	MaskChar = "*"
	// URLMaskLength is how many characters to show before masking URLs.
	URLMaskLength = 30
	// DefaultMaskLength is how many mask characters to show.
	DefaultMaskLength = 3
)

// SensitiveFields contains attribute keys whose values are redacted.
var SensitiveFields = map[string]bool{
	"token":         true,
	"secret":        true,
	"password":      true,
	"api_key":       true,
	"authorization": true,
	"url":           true,
}

// MaskURL masks a URL, showing only the first URLMaskLength characters.
// Webhook URLs embed their credentials.
func MaskURL(url string) string {
	if len(url) <= URLMaskLength {
		return url
	}
	return url[:URLMaskLength] + strings.Repeat(MaskChar, DefaultMaskLength)
}

// MaskValue masks a sensitive value completely.
func MaskValue(value string) string {
	if value == "" {
		return ""
	}
	return strings.Repeat(MaskChar, min(len(value), 8))
}

// IsSensitiveField reports whether an attribute key names sensitive data,
// either exactly or as a "_token" style suffix.
func IsSensitiveField(key string) bool {
	lower := strings.ToLower(key)
	if SensitiveFields[lower] {
		return true
	}
	for keyword := range SensitiveFields {
		if strings.HasSuffix(lower, "_"+keyword) {
			return true
		}
	}
	return false
}

// maskAttr redacts a single attribute, descending into groups.
func maskAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		masked := make([]any, len(attrs))
		for i, ga := range attrs {
			masked[i] = maskAttr(ga)
		}
		return slog.Group(a.Key, masked...)
	}
	if !IsSensitiveField(a.Key) {
		return a
	}
	if a.Value.Kind() != slog.KindString {
		return slog.String(a.Key, strings.Repeat(MaskChar, 8))
	}
	if strings.HasSuffix(strings.ToLower(a.Key), "url") {
		return slog.String(a.Key, MaskURL(a.Value.String()))
	}
	return slog.String(a.Key, MaskValue(a.Value.String()))
}

// maskingHandler redacts sensitive attributes before passing records on.
type maskingHandler struct {
	next slog.Handler
}

func (h *maskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *maskingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(maskAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *maskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = maskAttr(a)
	}
	return &maskingHandler{next: h.next.WithAttrs(masked)}
}

func (h *maskingHandler) WithGroup(name string) slog.Handler {
	return &maskingHandler{next: h.next.WithGroup(name)}
}
