package notify

import (
	"encoding/json"
	"time"
)

// DiscordFormatter formats messages for Discord webhooks.
type DiscordFormatter struct{}

type discordPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

type discordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Footer      *discordEmbedFooter `json:"footer,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbedFooter struct {
	Text string `json:"text"`
}

// Format converts a message to a single Discord embed.
func (f *DiscordFormatter) Format(msg Message) ([]byte, error) {
	embed := discordEmbed{
		Title:       msg.Title,
		Description: msg.Body,
		Color:       msg.color(),
		Timestamp:   msg.Timestamp.UTC().Format(time.RFC3339),
		Footer:      &discordEmbedFooter{Text: footerText},
	}

	for _, field := range msg.Fields {
		embed.Fields = append(embed.Fields, discordEmbedField{
			Name:   field.Name,
			Value:  field.Value,
			Inline: true,
		})
	}

	return json.Marshal(discordPayload{Embeds: []discordEmbed{embed}})
}

// ContentType returns the content type for Discord webhooks.
func (f *DiscordFormatter) ContentType() string {
	return "application/json"
}
