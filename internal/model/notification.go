package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Recurrence governs whether a fired reminder re-arms.
type Recurrence string

// Recurrence values. Only daily re-arms; the rest fire once.
const (
	RecurDaily   Recurrence = "daily"
	RecurWeekly  Recurrence = "weekly"
	RecurMonthly Recurrence = "monthly"
	RecurOnce    Recurrence = "once"
)

// LegacyNotificationID is the id given to the reminder upgraded from the
// single-row settings blob.
const LegacyNotificationID = "notif-1"

// Notification is a persisted reminder rule.
type Notification struct {
	ID         string     `json:"id"`
	Time       string     `json:"time"` // HH:MM, 24-hour
	Message    string     `json:"message"`
	Enabled    bool       `json:"enabled"`
	Recurrence Recurrence `json:"recurrence"`
}

// NewNotification creates an enabled reminder with a fresh ID.
func NewNotification(hhmm, message string, recurrence Recurrence) Notification {
	n := Notification{
		ID:         uuid.New().String(),
		Time:       hhmm,
		Message:    message,
		Enabled:    true,
		Recurrence: recurrence,
	}
	n.ApplyDefaults()
	return n
}

// ApplyDefaults fills an empty time, message and recurrence.
func (n *Notification) ApplyDefaults() {
	if n.Time == "" {
		n.Time = DefaultTime
	}
	if n.Message == "" {
		n.Message = DefaultMessage
	}
	if n.Recurrence == "" {
		n.Recurrence = RecurDaily
	}
}

// Rearms reports whether the reminder schedules itself again after firing.
func (n Notification) Rearms() bool {
	return n.Recurrence == RecurDaily
}

// ValidRecurrences returns the valid recurrence options.
func ValidRecurrences() []Recurrence {
	return []Recurrence{RecurDaily, RecurWeekly, RecurMonthly, RecurOnce}
}

// IsValidRecurrence checks if a recurrence is valid.
func IsValidRecurrence(r string) bool {
	for _, valid := range ValidRecurrences() {
		if Recurrence(r) == valid {
			return true
		}
	}
	return false
}

// ParseTimeOfDay splits a 24-hour "HH:MM" value.
func ParseTimeOfDay(hhmm string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, 0, fmt.Errorf("time of day %q: want HH:MM", hhmm)
	}
	return t.Hour(), t.Minute(), nil
}
