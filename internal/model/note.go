package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NoteItem is one discrete note within a month.
type NoteItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
}

// NewNoteItem creates a note item stamped with the given time.
func NewNoteItem(text string, now time.Time) NoteItem {
	return NoteItem{
		ID:        uuid.New().String(),
		Text:      text,
		CreatedAt: now.UTC().Format(time.RFC3339),
	}
}

// NoteValue is the stored payload of a month's notes: either a single
// free-text string (the older shape) or a list of items.
type NoteValue struct {
	text    string
	items   []NoteItem
	isItems bool
}

// TextNote wraps free text.
func TextNote(text string) NoteValue {
	return NoteValue{text: text}
}

// ItemsNote wraps a list of items.
func ItemsNote(items []NoteItem) NoteValue {
	cp := make([]NoteItem, len(items))
	copy(cp, items)
	return NoteValue{items: cp, isItems: true}
}

// IsItems reports whether the value holds a list.
func (v NoteValue) IsItems() bool { return v.isItems }

// Text returns the free text, or "" for a list.
func (v NoteValue) Text() string { return v.text }

// Items returns a copy of the list, or nil for free text.
func (v NoteValue) Items() []NoteItem {
	if !v.isItems {
		return nil
	}
	cp := make([]NoteItem, len(v.items))
	copy(cp, v.items)
	return cp
}

// IsBlank reports whether storing this value should delete the row instead.
func (v NoteValue) IsBlank() bool {
	if v.isItems {
		return len(v.items) == 0
	}
	return strings.TrimSpace(v.text) == ""
}

// Encode returns the stored form: the raw string, or a JSON array.
func (v NoteValue) Encode() (string, error) {
	if !v.isItems {
		return v.text, nil
	}
	items := v.items
	if items == nil {
		items = []NoteItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// legacyWebNote is the {text, date} object written by older web builds.
type legacyWebNote struct {
	Text string `json:"text"`
	Date string `json:"date"`
}

// DecodeNoteValue interprets a stored payload. It never fails: anything
// that is not a recognised JSON shape is treated as free text.
func DecodeNoteValue(raw string) NoteValue {
	trimmed := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(trimmed, "["):
		var items []NoteItem
		if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
			return ItemsNote(items)
		}
	case strings.HasPrefix(trimmed, "{"):
		var web legacyWebNote
		if err := json.Unmarshal([]byte(trimmed), &web); err == nil && web.Text != "" {
			return ItemsNote([]NoteItem{{Text: web.Text, CreatedAt: web.Date}})
		}
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
			return TextNote(s)
		}
	}
	return TextNote(raw)
}

// Normalize returns the value as a list for display. Free text becomes one
// item with an ID derived from the month key so repeated reads agree.
func (v NoteValue) Normalize(monthKey string) []NoteItem {
	if v.isItems {
		items := v.Items()
		for i := range items {
			if items[i].ID == "" {
				items[i].ID = fmt.Sprintf("legacy-%s-%d", monthKey, i)
			}
		}
		return items
	}
	if strings.TrimSpace(v.text) == "" {
		return []NoteItem{}
	}
	return []NoteItem{{ID: "legacy-" + monthKey, Text: v.text}}
}

// MonthKey returns the YEAR-MONTHINDEX key (zero-based month) for t.
func MonthKey(t time.Time) string {
	return fmt.Sprintf("%d-%d", t.Year(), int(t.Month())-1)
}

// ParseMonthKey splits a month key into year and zero-based month.
func ParseMonthKey(key string) (year int, month int, err error) {
	parts := strings.Split(key, "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("month key %q: expected YEAR-MONTHINDEX", key)
	}
	year, err = strconv.Atoi(parts[0])
	if err != nil || year < 1 {
		return 0, 0, fmt.Errorf("month key %q: invalid year", key)
	}
	month, err = strconv.Atoi(parts[1])
	if err != nil || month < 0 || month > 11 {
		return 0, 0, fmt.Errorf("month key %q: month index must be 0-11", key)
	}
	return year, month, nil
}

// MonthKeyToYearMonth converts a month key to a YYYY-MM calendar prefix.
func MonthKeyToYearMonth(key string) (string, error) {
	year, month, err := ParseMonthKey(key)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d-%02d", year, month+1), nil
}
