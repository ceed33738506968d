package notify

import (
	"encoding/json"
	"fmt"
)

// TeamsFormatter formats messages for Microsoft Teams webhooks.
type TeamsFormatter struct{}

// teamsPayload is the legacy MessageCard format.
type teamsPayload struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Summary    string         `json:"summary"`
	Sections   []teamsSection `json:"sections,omitempty"`
}

type teamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	Text             string      `json:"text,omitempty"`
	Facts            []teamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown"`
}

type teamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Format converts a message to a MessageCard.
func (f *TeamsFormatter) Format(msg Message) ([]byte, error) {
	section := teamsSection{
		ActivityTitle:    msg.Title,
		ActivitySubtitle: fmt.Sprintf("%s | %s", footerText, msg.Timestamp.Format("Jan 2, 3:04 PM")),
		Text:             msg.Body,
		Markdown:         true,
	}

	for _, field := range msg.Fields {
		section.Facts = append(section.Facts, teamsFact{Name: field.Name, Value: field.Value})
	}

	payload := teamsPayload{
		Type:       "MessageCard",
		Context:    "http://schema.org/extensions",
		ThemeColor: fmt.Sprintf("%06X", msg.color()),
		Summary:    msg.Title,
		Sections:   []teamsSection{section},
	}

	return json.Marshal(payload)
}

// ContentType returns the content type for Teams webhooks.
func (f *TeamsFormatter) ContentType() string {
	return "application/json"
}
