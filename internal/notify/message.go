package notify

import (
	"time"

	"github.com/manav03panchal/fintrack/internal/model"
)

// ReminderTitle is the title of every reminder message.
const ReminderTitle = "FinTrack Reminder"

// Message colors (Discord-compatible hex values).
const (
	ColorReminder = 0x5865F2 // Blurple
	ColorTest     = 0x57F287 // Green
)

// Field is one labelled value shown alongside a message.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Message is what a Channel delivers.
type Message struct {
	ReminderID string    `json:"reminder_id,omitempty"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Fields     []Field   `json:"fields,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Color      int       `json:"color,omitempty"`
}

// NewReminderMessage builds the message shown when a reminder fires.
func NewReminderMessage(n model.Notification, firedAt time.Time) Message {
	return Message{
		ReminderID: n.ID,
		Title:      ReminderTitle,
		Body:       n.Message,
		Fields: []Field{
			{Name: "Time", Value: n.Time},
			{Name: "Repeats", Value: string(n.Recurrence)},
		},
		Timestamp: firedAt,
		Color:     ColorReminder,
	}
}

// NewTestMessage builds a message for checking a channel's configuration.
func NewTestMessage(channel string, now time.Time) Message {
	return Message{
		Title:     "FinTrack Test",
		Body:      "This is a test notification from FinTrack. If you see this, reminders will reach you here.",
		Fields:    []Field{{Name: "Channel", Value: channel}},
		Timestamp: now,
		Color:     ColorTest,
	}
}

func (m Message) color() int {
	if m.Color == 0 {
		return ColorReminder
	}
	return m.Color
}
