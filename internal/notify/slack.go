package notify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SlackFormatter formats messages for Slack incoming webhooks.
type SlackFormatter struct{}

type slackPayload struct {
	Text        string        `json:"text,omitempty"`
	Blocks      []slackBlock  `json:"blocks,omitempty"`
	Attachments []slackAttach `json:"attachments,omitempty"`
}

type slackBlock struct {
	Type     string           `json:"type"`
	Text     *slackBlockText  `json:"text,omitempty"`
	Fields   []slackBlockText `json:"fields,omitempty"`
	Elements []slackBlockText `json:"elements,omitempty"`
}

type slackBlockText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackAttach struct {
	Color    string `json:"color,omitempty"`
	Fallback string `json:"fallback,omitempty"`
}

// Format converts a message to Slack block kit.
func (f *SlackFormatter) Format(msg Message) ([]byte, error) {
	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackBlockText{Type: "plain_text", Text: msg.Title},
		},
		{
			Type: "section",
			Text: &slackBlockText{Type: "mrkdwn", Text: slackEscape(msg.Body)},
		},
	}

	if len(msg.Fields) > 0 {
		fields := make([]slackBlockText, 0, len(msg.Fields))
		for _, field := range msg.Fields {
			fields = append(fields, slackBlockText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("*%s*\n%s", slackEscape(field.Name), slackEscape(field.Value)),
			})
		}
		blocks = append(blocks, slackBlock{Type: "section", Fields: fields})
	}

	// Context blocks take elements, not text.
	blocks = append(blocks, slackBlock{
		Type: "context",
		Elements: []slackBlockText{{
			Type: "mrkdwn",
			Text: fmt.Sprintf("%s | %s", footerText, msg.Timestamp.Format("Jan 2, 3:04 PM")),
		}},
	})

	payload := slackPayload{
		Text:   fmt.Sprintf("*%s*", msg.Title),
		Blocks: blocks,
		Attachments: []slackAttach{{
			Color:    colorToHex(msg.color()),
			Fallback: msg.Title,
		}},
	}

	return json.Marshal(payload)
}

// ContentType returns the content type for Slack webhooks.
func (f *SlackFormatter) ContentType() string {
	return "application/json"
}

func colorToHex(color int) string {
	return fmt.Sprintf("#%06X", color)
}

// slackEscape escapes the characters Slack mrkdwn treats as control sequences.
func slackEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
