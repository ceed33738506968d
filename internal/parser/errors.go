package parser

import (
	"fmt"
	"strings"

	"github.com/manav03panchal/fintrack/internal/errors"
)

// ParseError represents an input parsing error with helpful suggestions.
type ParseError struct {
	Input      string
	Field      string
	Message    string
	Examples   []string
	Suggestion string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s '%s': %s", e.Field, e.Input, e.Message)
}

// NewParseError creates a new parse error with examples.
func NewParseError(field, input, message string, examples ...string) *ParseError {
	return &ParseError{
		Input:    input,
		Field:    field,
		Message:  message,
		Examples: examples,
	}
}

// FormatWithExamples returns the error message with example suggestions.
func (e *ParseError) FormatWithExamples() string {
	var sb strings.Builder
	sb.WriteString(e.Error())

	if len(e.Examples) > 0 {
		sb.WriteString("\n\nValid examples:\n")
		for _, ex := range e.Examples {
			sb.WriteString("  - ")
			sb.WriteString(ex)
			sb.WriteString("\n")
		}
	}

	if e.Suggestion != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Suggestion)
	}

	return sb.String()
}

// DateExamples provides example date formats.
var DateExamples = []string{
	"today",
	"yesterday",
	"2024-03-15",
	"15 March 2024",
	"3 days ago",
	"last friday",
}

// MonthExamples provides example month formats.
var MonthExamples = []string{
	"this month",
	"last month",
	"2024-03",
	"March 2024",
}

// AmountExamples provides example amount formats.
var AmountExamples = []string{
	"12.50",
	"-40",
	"1,250.00",
	"$19.99",
	"+1500",
}

// TimeOfDayExamples provides example reminder time formats.
var TimeOfDayExamples = []string{
	"20:00",
	"8:30",
	"9am",
	"7:15pm",
}

// NewDateError creates a date parse error with standard examples.
func NewDateError(input string) *ParseError {
	return &ParseError{
		Input:      input,
		Field:      "date",
		Message:    "could not parse date",
		Examples:   DateExamples,
		Suggestion: "Dates can be absolute (2024-03-15) or relative (yesterday, 3 days ago).",
	}
}

// NewMonthError creates a month parse error with standard examples.
func NewMonthError(input string) *ParseError {
	return &ParseError{
		Input:      input,
		Field:      "month",
		Message:    "could not parse month",
		Examples:   MonthExamples,
		Suggestion: "Use 'this month', 'last month' or a year and month like 2024-03.",
	}
}

// NewAmountError creates an amount parse error with standard examples.
func NewAmountError(input string) *ParseError {
	return &ParseError{
		Input:      input,
		Field:      "amount",
		Message:    "could not parse amount",
		Examples:   AmountExamples,
		Suggestion: "Amounts are plain numbers; currency symbols and thousands separators are ignored.",
	}
}

// NewTimeOfDayError creates a time-of-day parse error with standard examples.
func NewTimeOfDayError(input string) *ParseError {
	return &ParseError{
		Input:      input,
		Field:      "time",
		Message:    "could not parse time of day",
		Examples:   TimeOfDayExamples,
		Suggestion: "Reminder times are 24-hour HH:MM, or a clock time like '9am'.",
	}
}

// ToUserError converts a ParseError to a UserError for consistent handling.
func (e *ParseError) ToUserError() *errors.UserError {
	suggestion := e.Suggestion
	if len(e.Examples) > 0 && suggestion == "" {
		suggestion = fmt.Sprintf("Try: %s", strings.Join(e.Examples[:min(3, len(e.Examples))], ", "))
	}

	return errors.NewUserErrorWithField(e.Field, e.Input, e.Message, suggestion)
}
