package parser

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/fintrack/internal/errors"
	"github.com/manav03panchal/fintrack/internal/model"
)

var now = time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

// =============================================================================
// Date Tests
// =============================================================================

func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "2024-03-15"},
		{"today", "2024-03-15"},
		{"NOW", "2024-03-15"},
		{"  yesterday ", "2024-03-14"},
		{"tomorrow", "2024-03-16"},
		{"2024-01-31", "2024-01-31"},
		{"2 days ago", "2024-03-13"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseDate(tt.input, now)
			require.NoError(t, result.Error)
			assert.Equal(t, tt.want, result.Date)
			assert.Equal(t, 0, result.Time.Hour())
		})
	}
}

func TestParseDateInvalid(t *testing.T) {
	result := ParseDate("not a date at all", now)
	require.Error(t, result.Error)

	var pe *ParseError
	require.ErrorAs(t, result.Error, &pe)
	assert.Equal(t, "date", pe.Field)
	assert.Empty(t, result.Date)
}

// =============================================================================
// Month Tests
// =============================================================================

func TestParseMonth(t *testing.T) {
	tests := []struct {
		input string
		month string
		key   string
	}{
		{"", "2024-03", "2024-2"},
		{"this month", "2024-03", "2024-2"},
		{"Last Month", "2024-02", "2024-1"},
		{"next month", "2024-04", "2024-3"},
		{"2023-12", "2023-12", "2023-11"},
		{"2024-1", "2024-01", "2024-0"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseMonth(tt.input, now)
			require.NoError(t, result.Error)
			assert.Equal(t, tt.month, result.Month)
			assert.Equal(t, tt.key, result.Key)
			assert.Equal(t, 1, result.Start.Day())
		})
	}
}

func TestParseMonthAcrossYear(t *testing.T) {
	jan := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	result := ParseMonth("last month", jan)
	require.NoError(t, result.Error)
	assert.Equal(t, "2023-12", result.Month)
	assert.Equal(t, "2023-11", result.Key)
}

func TestParseMonthInvalid(t *testing.T) {
	assert.Error(t, ParseMonth("2024-13", now).Error)
	assert.Error(t, ParseMonth("gibberish words here", now).Error)
}

// =============================================================================
// Time of Day Tests
// =============================================================================

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"20:00", "20:00"},
		{"8:30", "08:30"},
		{" 07:05 ", "07:05"},
	}
	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.input, now)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseTimeOfDay("whenever you like", now)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "time", pe.Field)
}

// =============================================================================
// Amount Tests
// =============================================================================

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input string
		want  string
		typ   model.TxType
	}{
		{"12.50", "12.5", ""},
		{"-40", "-40", model.TxExpense},
		{"+1500", "1500", model.TxIncome},
		{"1,250.00", "1250", ""},
		{"$19.99", "19.99", ""},
		{"-₹500", "-500", model.TxExpense},
		{"0.125", "0.13", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseAmount(tt.input)
			require.NoError(t, result.Error)
			assert.Equal(t, tt.want, result.Amount.String())
			assert.Equal(t, tt.typ, result.Type)
		})
	}
}

func TestParseAmountInvalid(t *testing.T) {
	for _, input := range []string{"", "  ", "abc", "--5", "+-5", "$", "1.2.3"} {
		result := ParseAmount(input)
		assert.Error(t, result.Error, input)
	}
}

func TestAmountFloat(t *testing.T) {
	assert.Equal(t, -40.25, ParseAmount("-40.25").Float())
}

func TestFormatAmount(t *testing.T) {
	tests := map[string]string{
		"0":          "0.00",
		"12.5":       "12.50",
		"999":        "999.00",
		"1000":       "1,000.00",
		"-1234567.8": "-1,234,567.80",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatAmount(decimal.RequireFromString(in)), in)
	}
}

// =============================================================================
// Error Tests
// =============================================================================

func TestParseErrorFormatting(t *testing.T) {
	err := NewParseError("amount", "abc", "could not parse amount", "12.50", "-40")
	assert.Equal(t, "invalid amount 'abc': could not parse amount", err.Error())

	text := err.FormatWithExamples()
	assert.Contains(t, text, "Valid examples:")
	assert.Contains(t, text, "  - 12.50")

	err.Examples = nil
	assert.NotContains(t, err.FormatWithExamples(), "Valid examples:")
}

func TestParseErrorToUserError(t *testing.T) {
	ue := NewDateError("blah").ToUserError()
	assert.Equal(t, "date", ue.Field)
	assert.Equal(t, "blah", ue.Value)
	assert.Contains(t, ue.Suggestion, "yesterday")
	assert.True(t, errors.IsUserError(ue))

	bare := NewParseError("amount", "x", "bad", "1", "2", "3", "4").ToUserError()
	assert.Equal(t, "Try: 1, 2, 3", bare.Suggestion)
}

func TestStandardErrors(t *testing.T) {
	assert.Equal(t, MonthExamples, NewMonthError("x").Examples)
	assert.Equal(t, AmountExamples, NewAmountError("x").Examples)
	assert.Equal(t, TimeOfDayExamples, NewTimeOfDayError("x").Examples)
}
