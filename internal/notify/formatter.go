package notify

// Webhook types.
const (
	TypeDiscord = "discord"
	TypeSlack   = "slack"
	TypeTeams   = "teams"
	TypeGeneric = "generic"
)

// footerText labels every chat payload.
const footerText = "FinTrack"

// Formatter formats messages for a specific webhook type.
type Formatter interface {
	// Format converts a message into the webhook-specific payload.
	Format(msg Message) ([]byte, error)

	// ContentType returns the HTTP Content-Type for the payload.
	ContentType() string
}

// GetFormatter returns the appropriate formatter for a webhook type.
// Unknown types fall back to the generic JSON payload.
func GetFormatter(webhookType string) Formatter {
	switch webhookType {
	case TypeDiscord:
		return &DiscordFormatter{}
	case TypeSlack:
		return &SlackFormatter{}
	case TypeTeams:
		return &TeamsFormatter{}
	default:
		return &GenericFormatter{}
	}
}

// IsValidType reports whether t names a known webhook type.
func IsValidType(t string) bool {
	switch t {
	case TypeDiscord, TypeSlack, TypeTeams, TypeGeneric:
		return true
	}
	return false
}
