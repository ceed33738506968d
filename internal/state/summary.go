package state

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/manav03panchal/fintrack/internal/model"
)

// CategoryTotal is the spending in one category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// Summary aggregates transactions for a period.
type Summary struct {
	Month      string          `json:"month,omitempty"`
	Income     decimal.Decimal `json:"income"`
	Expense    decimal.Decimal `json:"expense"`
	Balance    decimal.Decimal `json:"balance"`
	Count      int             `json:"count"`
	ByCategory []CategoryTotal `json:"by_category"`
}

// Summarize totals the transactions in month (YYYY-MM), or all of them when
// month is empty. Expenses are summed by absolute value, so both a negative
// amount and an "expense" type count as spending once.
func Summarize(txs []model.Transaction, month string) Summary {
	sum := Summary{
		Month:   month,
		Income:  decimal.Zero,
		Expense: decimal.Zero,
	}
	byCat := make(map[string]*CategoryTotal)

	for _, tx := range txs {
		if month != "" && tx.Month() != month {
			continue
		}
		sum.Count++
		amount := decimal.NewFromFloat(math.Abs(tx.Amount))

		if tx.IsExpense() {
			sum.Expense = sum.Expense.Add(amount)
			cat := strings.TrimSpace(tx.Category)
			if cat == "" {
				cat = model.DefaultCategory
			}
			ct, ok := byCat[cat]
			if !ok {
				ct = &CategoryTotal{Category: cat, Total: decimal.Zero}
				byCat[cat] = ct
			}
			ct.Total = ct.Total.Add(amount)
			ct.Count++
			continue
		}
		if tx.IsIncome() {
			sum.Income = sum.Income.Add(amount)
		}
	}

	sum.Balance = sum.Income.Sub(sum.Expense)
	sum.ByCategory = make([]CategoryTotal, 0, len(byCat))
	for _, ct := range byCat {
		sum.ByCategory = append(sum.ByCategory, *ct)
	}
	sort.Slice(sum.ByCategory, func(i, j int) bool {
		a, b := sum.ByCategory[i], sum.ByCategory[j]
		if c := a.Total.Cmp(b.Total); c != 0 {
			return c > 0
		}
		return a.Category < b.Category
	})
	return sum
}

// Share returns ct's part of total as a percentage rounded to one place.
func (ct CategoryTotal) Share(total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return ct.Total.Div(total).Mul(decimal.NewFromInt(100)).Round(1)
}
