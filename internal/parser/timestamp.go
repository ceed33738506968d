package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/markusmobius/go-dateparser"

	"github.com/manav03panchal/fintrack/internal/model"
)

// DateResult holds a parsed calendar date.
type DateResult struct {
	// Date is YYYY-MM-DD in now's location.
	Date  string
	Time  time.Time
	Error error
}

// MonthResult holds a parsed calendar month.
type MonthResult struct {
	// Month is the YYYY-MM transaction prefix.
	Month string
	// Key is the YEAR-MONTHINDEX note key.
	Key   string
	Start time.Time
	Error error
}

// periodRegex matches month expressions like "this month", "last month".
var periodRegex = regexp.MustCompile(`(?i)^(this|current|last|previous|next)\s+month$`)

// yearMonthRegex matches "2024-03" and "2024-3".
var yearMonthRegex = regexp.MustCompile(`^\d{4}-\d{1,2}$`)

// ParseDate parses a calendar date relative to now. ISO dates are taken
// as is; anything else goes through natural language parsing.
func ParseDate(input string, now time.Time) DateResult {
	input = strings.TrimSpace(input)
	switch strings.ToLower(input) {
	case "", "today", "now":
		return dateResult(now)
	case "yesterday":
		return dateResult(now.AddDate(0, 0, -1))
	case "tomorrow":
		return dateResult(now.AddDate(0, 0, 1))
	}

	if t, err := time.ParseInLocation(model.DateLayout, input, now.Location()); err == nil {
		return dateResult(t)
	}

	cfg := &dateparser.Configuration{
		CurrentTime: now,
	}

	result, err := dateparser.Parse(cfg, input)
	if err != nil || result.Time.IsZero() {
		return DateResult{Error: NewDateError(input)}
	}

	return dateResult(result.Time.In(now.Location()))
}

func dateResult(t time.Time) DateResult {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return DateResult{Date: day.Format(model.DateLayout), Time: day}
}

// ParseMonth parses a calendar month relative to now.
func ParseMonth(input string, now time.Time) MonthResult {
	input = strings.TrimSpace(input)
	if input == "" {
		return monthResult(now)
	}

	if match := periodRegex.FindStringSubmatch(input); match != nil {
		t := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		switch strings.ToLower(match[1]) {
		case "last", "previous":
			t = t.AddDate(0, -1, 0)
		case "next":
			t = t.AddDate(0, 1, 0)
		}
		return monthResult(t)
	}

	if yearMonthRegex.MatchString(input) {
		t, err := time.ParseInLocation("2006-1", input, now.Location())
		if err != nil {
			return MonthResult{Error: NewMonthError(input)}
		}
		return monthResult(t)
	}

	cfg := &dateparser.Configuration{
		CurrentTime: now,
	}

	result, err := dateparser.Parse(cfg, input)
	if err != nil || result.Time.IsZero() {
		return MonthResult{Error: NewMonthError(input)}
	}

	return monthResult(result.Time.In(now.Location()))
}

func monthResult(t time.Time) MonthResult {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return MonthResult{
		Month: first.Format("2006-01"),
		Key:   model.MonthKey(first),
		Start: first,
	}
}

// ParseTimeOfDay parses a reminder time into 24-hour HH:MM.
func ParseTimeOfDay(input string, now time.Time) (string, error) {
	input = strings.TrimSpace(input)
	if h, m, err := model.ParseTimeOfDay(input); err == nil {
		return formatHHMM(h, m), nil
	}

	cfg := &dateparser.Configuration{
		CurrentTime: now,
	}

	result, err := dateparser.Parse(cfg, input)
	if err != nil || result.Time.IsZero() {
		return "", NewTimeOfDayError(input)
	}
	return result.Time.Format("15:04"), nil
}

func formatHHMM(h, m int) string {
	return time.Date(0, 1, 1, h, m, 0, 0, time.UTC).Format("15:04")
}
