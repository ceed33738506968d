package notify

import (
	"bytes"
	"encoding/json"
	"text/template"
	"time"
)

// GenericFormatter formats messages for arbitrary JSON webhooks.
type GenericFormatter struct {
	// Template is an optional text/template rendered with the message.
	Template string
}

// NewGenericFormatter creates a generic formatter with an optional template.
func NewGenericFormatter(template string) *GenericFormatter {
	return &GenericFormatter{Template: template}
}

type genericPayload struct {
	ReminderID string            `json:"reminder_id,omitempty"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
	Timestamp  string            `json:"timestamp"`
	Color      int               `json:"color,omitempty"`
}

// Format converts a message to the generic payload, or renders Template.
func (f *GenericFormatter) Format(msg Message) ([]byte, error) {
	if f.Template != "" {
		return f.formatWithTemplate(msg)
	}

	payload := genericPayload{
		ReminderID: msg.ReminderID,
		Title:      msg.Title,
		Message:    msg.Body,
		Fields:     fieldMap(msg.Fields),
		Timestamp:  msg.Timestamp.UTC().Format(time.RFC3339),
		Color:      msg.color(),
	}

	return json.Marshal(payload)
}

func (f *GenericFormatter) formatWithTemplate(msg Message) ([]byte, error) {
	tmpl, err := template.New("webhook").Parse(f.Template)
	if err != nil {
		return nil, err
	}

	data := map[string]any{
		"ReminderID": msg.ReminderID,
		"Title":      msg.Title,
		"Message":    msg.Body,
		"Fields":     fieldMap(msg.Fields),
		"Timestamp":  msg.Timestamp,
		"Color":      msg.color(),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ContentType returns the content type for generic webhooks.
func (f *GenericFormatter) ContentType() string {
	return "application/json"
}

func fieldMap(fields []Field) map[string]string {
	if len(fields) == 0 {
		return nil
	}
	m := make(map[string]string, len(fields))
	for _, field := range fields {
		m[field.Name] = field.Value
	}
	return m
}
