package runtime

import (
	"strings"

	"github.com/manav03panchal/fintrack/internal/errors"
	"github.com/manav03panchal/fintrack/internal/parser"
)

// Exit codes returned by the CLI.
const (
	ExitOK      = 0
	ExitUser    = 1
	ExitStorage = 2
	ExitOther   = 3
)

// Described is an error broken into the parts shown to the user.
type Described struct {
	Message    string
	Category   string
	Suggestion string
	ExitCode   int
}

// Describe classifies err for display. Parse errors keep their own
// examples as the suggestion.
func Describe(err error) Described {
	if err == nil {
		return Described{ExitCode: ExitOK}
	}

	var pe *parser.ParseError
	if errors.As(err, &pe) {
		return Described{
			Message:    pe.Error(),
			Category:   errors.CategoryUser.String(),
			Suggestion: strings.TrimSpace(strings.TrimPrefix(pe.FormatWithExamples(), pe.Error())),
			ExitCode:   ExitUser,
		}
	}

	cat := errors.Classify(err)
	d := Described{
		Message:    err.Error(),
		Category:   cat.String(),
		Suggestion: errors.GetSuggestion(err),
	}
	switch cat {
	case errors.CategoryUser:
		d.ExitCode = ExitUser
	case errors.CategoryStorage, errors.CategoryWrite:
		d.ExitCode = ExitStorage
	default:
		d.ExitCode = ExitOther
	}
	return d
}

// FormatError formats an error with its suggestion on the next line.
func FormatError(err error) string {
	d := Describe(err)
	if d.Suggestion == "" || d.Suggestion == d.Message {
		return d.Message
	}
	return d.Message + "\n" + d.Suggestion
}
