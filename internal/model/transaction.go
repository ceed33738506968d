package model

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TxType is the direction of a transaction.
type TxType string

// Transaction types.
const (
	TxIncome  TxType = "income"
	TxExpense TxType = "expense"
)

// Transaction is a single income or expense entry.
type Transaction struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Type        TxType  `json:"type"`
	Category    string  `json:"category"`
	Date        string  `json:"date"` // YYYY-MM-DD
}

// NewTransaction creates a transaction with a fresh ID and defaults applied.
func NewTransaction(description string, amount float64, typ TxType, category, date string) Transaction {
	tx := Transaction{
		ID:          uuid.New().String(),
		Description: description,
		Amount:      amount,
		Type:        typ,
		Category:    category,
		Date:        date,
	}
	tx.ApplyDefaults(time.Time{})
	return tx
}

// ApplyDefaults fills empty type and category. A zero now leaves Date as is;
// otherwise an empty Date becomes now's calendar date.
func (t *Transaction) ApplyDefaults(now time.Time) {
	if t.Type == "" {
		t.Type = TxExpense
	}
	if t.Category == "" {
		t.Category = DefaultCategory
	}
	if t.Date == "" && !now.IsZero() {
		t.Date = now.Format(DateLayout)
	}
	if math.IsNaN(t.Amount) || math.IsInf(t.Amount, 0) {
		t.Amount = 0
	}
}

// IsExpense reports whether the transaction counts as spending.
// Older records only carry the sign, so a negative amount also counts.
func (t Transaction) IsExpense() bool {
	return t.Type == TxExpense || t.Amount < 0
}

// IsIncome reports whether the transaction counts as income.
func (t Transaction) IsIncome() bool {
	return t.Type == TxIncome || t.Amount > 0
}

// Month returns the transaction's YYYY-MM prefix, or "" for a malformed date.
func (t Transaction) Month() string {
	if len(t.Date) < 7 {
		return ""
	}
	return t.Date[:7]
}

// IsValidTxType checks if a transaction type is valid.
func IsValidTxType(s string) bool {
	return TxType(s) == TxIncome || TxType(s) == TxExpense
}

// CoerceAmount converts a number or numeric string into a float64.
// Anything else, including NaN and infinities, yields 0.
func CoerceAmount(v any) float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return 0
		}
		f = d.InexactFloat64()
	case []byte:
		return CoerceAmount(string(x))
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return 0
		}
		f = d.InexactFloat64()
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
