package parser

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/manav03panchal/fintrack/internal/model"
)

// AmountResult holds a parsed monetary amount.
type AmountResult struct {
	Amount decimal.Decimal
	// Type is the direction implied by an explicit sign, or "" when the
	// input had none.
	Type  model.TxType
	Error error
}

// currencySymbols are stripped before parsing.
var currencySymbols = []string{"$", "€", "£", "¥", "₹"}

// ParseAmount parses a monetary amount. Currency symbols, thousands
// separators and surrounding spaces are ignored. A leading "+" implies
// income and a leading "-" implies expense.
func ParseAmount(input string) AmountResult {
	s := strings.TrimSpace(input)
	if s == "" {
		return AmountResult{Error: NewAmountError(input)}
	}

	var typ model.TxType
	switch s[0] {
	case '+':
		typ = model.TxIncome
		s = s[1:]
	case '-':
		typ = model.TxExpense
		s = s[1:]
	}

	for _, sym := range currencySymbols {
		s = strings.TrimPrefix(s, sym)
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return AmountResult{Error: NewAmountError(input)}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return AmountResult{Error: NewAmountError(input)}
	}
	if typ == model.TxExpense {
		d = d.Neg()
	}
	return AmountResult{Amount: d.Round(2), Type: typ}
}

// Float returns the amount as stored.
func (r AmountResult) Float() float64 {
	f, _ := r.Amount.Float64()
	return f
}

// FormatAmount renders an amount with two decimals and thousands separators.
func FormatAmount(amount decimal.Decimal) string {
	s := amount.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var sb strings.Builder
	if amount.IsNegative() {
		sb.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	sb.WriteByte('.')
	sb.WriteString(frac)
	return sb.String()
}
