// Package validate provides input validation helpers for FinTrack actions.
// Every failure is an *errors.UserError carrying a suggestion.
package validate

import (
	"math"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/manav03panchal/fintrack/internal/errors"
	"github.com/manav03panchal/fintrack/internal/model"
)

const (
	// MaxIDLength is the maximum length for an entity id.
	MaxIDLength = 64
	// MaxURLLength is the maximum length for a URL.
	MaxURLLength = 2048
	// MaxDescriptionLength is the maximum length for a transaction description.
	MaxDescriptionLength = 256
	// MaxCategoryLength is the maximum length for a category.
	MaxCategoryLength = 64
	// MaxNameLength is the maximum length for the user's display name.
	MaxNameLength = 64
	// MaxNoteLength is the maximum length for a note item or reminder message.
	MaxNoteLength = 4096
	// MaxAmount bounds the magnitude of a single transaction.
	MaxAmount = 1e12
)

// idRegex accepts uuids, legacy numeric ids and ids like "notif-1".
var idRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._:-]*$`)

// currencyRegex accepts ISO 4217 style codes.
var currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)

// ID validates an entity id.
func ID(id string) error {
	if id == "" {
		return errors.NewUserError("ID cannot be empty", "Provide a valid identifier")
	}
	if len(id) > MaxIDLength {
		return errors.NewUserErrorWithField("id", id,
			"ID too long",
			"IDs must be 64 characters or fewer")
	}
	if !idRegex.MatchString(id) {
		return errors.NewUserErrorWithField("id", id,
			"Invalid ID format",
			"IDs must start with a letter or number and contain only letters, numbers, dashes, underscores, colons, or periods")
	}
	return nil
}

// Description validates a transaction description.
func Description(s string) error {
	if utf8.RuneCountInString(s) > MaxDescriptionLength {
		return errors.NewUserError("Description too long", "Descriptions must be 256 characters or fewer")
	}
	return nil
}

// Amount validates a transaction amount.
func Amount(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.NewUserError("Amount is not a number", "Use a number like '12.50' or '-40'")
	}
	if math.Abs(f) > MaxAmount {
		return errors.NewUserErrorWithField("amount", strconv.FormatFloat(f, 'f', -1, 64),
			"Amount too large",
			"Amounts must be below one trillion")
	}
	return nil
}

// TxType validates a transaction type.
func TxType(s string) error {
	if !model.IsValidTxType(s) {
		return errors.NewUserErrorWithField("type", s,
			"Invalid transaction type",
			"Use 'income' or 'expense'")
	}
	return nil
}

// Category validates a transaction category.
func Category(s string) error {
	if utf8.RuneCountInString(s) > MaxCategoryLength {
		return errors.NewUserErrorWithField("category", s,
			"Category too long",
			"Categories must be 64 characters or fewer")
	}
	return nil
}

// Date validates a YYYY-MM-DD calendar date.
func Date(s string) error {
	if _, err := time.Parse(model.DateLayout, s); err != nil {
		return errors.NewUserErrorWithField("date", s,
			"Invalid date",
			"Use a date like '2024-03-15', 'today' or 'yesterday'")
	}
	return nil
}

// TimeOfDay validates a 24-hour HH:MM time.
func TimeOfDay(hhmm string) error {
	if _, _, err := model.ParseTimeOfDay(hhmm); err != nil {
		return errors.NewUserErrorWithField("time", hhmm,
			"Invalid time of day",
			"Use a 24-hour time like '08:00' or '20:30'")
	}
	return nil
}

// Recurrence validates a reminder recurrence.
func Recurrence(r string) error {
	if !model.IsValidRecurrence(r) {
		return errors.NewUserErrorWithField("recurrence", r,
			"Invalid recurrence",
			"Use 'daily', 'weekly', 'monthly' or 'once'")
	}
	return nil
}

// Currency validates a three-letter currency code.
func Currency(code string) error {
	if !currencyRegex.MatchString(code) {
		return errors.NewUserErrorWithField("currency", code,
			"Invalid currency code",
			"Use a three-letter code like 'USD', 'EUR' or 'INR'")
	}
	return nil
}

// MonthKey validates a YEAR-MONTHINDEX note key.
func MonthKey(key string) error {
	if _, _, err := model.ParseMonthKey(key); err != nil {
		return errors.NewUserErrorWithField("month", key,
			"Invalid month key",
			"Month keys look like '2024-2' for March 2024 (months count from 0)")
	}
	return nil
}

// Note validates a note item or reminder message.
func Note(note string) error {
	if utf8.RuneCountInString(note) > MaxNoteLength {
		return errors.NewUserError(
			"Note too long",
			"Notes must be 4096 characters or fewer")
	}
	return nil
}

// UserName validates the display name.
func UserName(name string) error {
	if utf8.RuneCountInString(name) > MaxNameLength {
		return errors.NewUserErrorWithField("name", name,
			"Name too long",
			"Names must be 64 characters or fewer")
	}
	return nil
}

// Transaction validates every field of a transaction with defaults applied.
func Transaction(tx model.Transaction) error {
	if err := ID(tx.ID); err != nil {
		return err
	}
	if err := Description(tx.Description); err != nil {
		return err
	}
	if err := Amount(tx.Amount); err != nil {
		return err
	}
	if err := TxType(string(tx.Type)); err != nil {
		return err
	}
	if err := Category(tx.Category); err != nil {
		return err
	}
	return Date(tx.Date)
}

// Notification validates every field of a reminder with defaults applied.
func Notification(n model.Notification) error {
	if err := ID(n.ID); err != nil {
		return err
	}
	if err := TimeOfDay(n.Time); err != nil {
		return err
	}
	if err := Note(n.Message); err != nil {
		return err
	}
	return Recurrence(string(n.Recurrence))
}

// URL validates a URL for use as a webhook endpoint.
func URL(rawURL string) error {
	if rawURL == "" {
		return errors.NewUserError("URL cannot be empty", "Provide a valid URL")
	}
	if len(rawURL) > MaxURLLength {
		return errors.NewUserError("URL too long", "URLs must be 2048 characters or fewer")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.NewUserErrorWithField("url", rawURL,
			"Invalid URL format",
			"Provide a valid URL starting with https://")
	}

	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.NewUserErrorWithField("url", rawURL,
			"Invalid URL scheme",
			"URLs must use https:// (or http:// for localhost)")
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return errors.NewUserErrorWithField("url", rawURL,
			"Invalid URL: missing hostname",
			"Provide a valid URL like https://example.com/webhook")
	}

	isLocalhost := hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1"

	if parsed.Scheme == "http" && !isLocalhost {
		return errors.NewUserErrorWithField("url", rawURL,
			"HTTP not allowed for external URLs",
			"Use https:// for security. HTTP is only allowed for localhost.")
	}

	// Literal private addresses only; hostnames are not resolved here.
	if !isLocalhost {
		if ip := net.ParseIP(hostname); ip != nil && isInternalIP(ip) {
			return errors.NewUserErrorWithField("url", hostname,
				"Internal IP addresses not allowed",
				"Webhook URLs must point to external services")
		}
	}

	return nil
}

// isInternalIP checks if an IP is in a private/internal range.
func isInternalIP(ip net.IP) bool {
	privateRanges := []string{
		"10.0.0.0/8",     // RFC 1918
		"172.16.0.0/12",  // RFC 1918
		"192.168.0.0/16", // RFC 1918
		"127.0.0.0/8",    // Loopback (except explicit localhost check)
		"169.254.0.0/16", // Link-local
		"fc00::/7",       // IPv6 private
		"fe80::/10",      // IPv6 link-local
		"::1/128",        // IPv6 loopback
	}

	for _, cidr := range privateRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if network.Contains(ip) {
			return true
		}
	}

	return false
}

// NonEmpty validates that a string is not empty.
func NonEmpty(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewUserError(
			field+" cannot be empty",
			"Provide a value for "+field)
	}
	return nil
}

// InRange validates that an integer is within a range.
func InRange(field string, value, min, max int) error {
	if value < min || value > max {
		return errors.NewUserErrorWithField(field, strconv.Itoa(value),
			"Value out of range",
			"Must be between "+strconv.Itoa(min)+" and "+strconv.Itoa(max))
	}
	return nil
}
