package output

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/manav03panchal/fintrack/internal/model"
	"github.com/manav03panchal/fintrack/internal/parser"
	"github.com/manav03panchal/fintrack/internal/scheduler"
	"github.com/manav03panchal/fintrack/internal/state"
	"github.com/manav03panchal/fintrack/internal/storage"
)

// Styles for CLI output.
var (
	// Colors
	colorPrimary = lipgloss.Color("#4F46E5") // Indigo
	colorMuted   = lipgloss.Color("#6B7280") // Gray
	colorWarning = lipgloss.Color("#F59E0B") // Yellow
	colorError   = lipgloss.Color("#EF4444") // Red
	colorSuccess = lipgloss.Color("#10B981") // Green

	// Styles
	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	styleSuccess = lipgloss.NewStyle().
			Foreground(colorSuccess)

	styleWarning = lipgloss.NewStyle().
			Foreground(colorWarning)

	styleError = lipgloss.NewStyle().
			Foreground(colorError)

	styleMuted = lipgloss.NewStyle().
			Foreground(colorMuted)

	styleIncome = lipgloss.NewStyle().
			Foreground(colorSuccess)

	styleExpense = lipgloss.NewStyle().
			Foreground(colorError)

	styleBalance = lipgloss.NewStyle().
			Bold(true)

	styleNote = lipgloss.NewStyle().
			Italic(true).
			Foreground(colorMuted)
)

// CLIFormatter provides CLI-specific formatting.
type CLIFormatter struct {
	*Formatter
}

// NewCLIFormatter creates a new CLI formatter.
func NewCLIFormatter(f *Formatter) *CLIFormatter {
	return &CLIFormatter{Formatter: f}
}

func (c *CLIFormatter) render(style lipgloss.Style, text string) string {
	if c.IsColorEnabled() {
		return style.Render(text)
	}
	return text
}

// Title prints a title.
func (c *CLIFormatter) Title(text string) {
	c.Println(c.render(styleTitle, text))
}

// Success prints a success message.
func (c *CLIFormatter) Success(text string) {
	c.Println(c.render(styleSuccess, "✓ "+text))
}

// Warning prints a warning message.
func (c *CLIFormatter) Warning(text string) {
	c.Println(c.render(styleWarning, "⚠ "+text))
}

// Error prints an error message.
func (c *CLIFormatter) Error(text string) {
	c.Println(c.render(styleError, "✗ "+text))
}

// Muted prints muted text.
func (c *CLIFormatter) Muted(text string) {
	c.Println(c.render(styleMuted, text))
}

// Note formats note text.
func (c *CLIFormatter) Note(text string) string {
	return c.render(styleNote, text)
}

// Money formats an amount with its currency code.
func (c *CLIFormatter) Money(amount decimal.Decimal, currency string) string {
	return parser.FormatAmount(amount) + " " + currency
}

// SignedMoney formats a transaction amount colored by direction.
func (c *CLIFormatter) SignedMoney(tx model.Transaction, currency string) string {
	amount := decimal.NewFromFloat(tx.Amount).Abs()
	if tx.IsExpense() {
		return c.render(styleExpense, "-"+c.Money(amount, currency))
	}
	return c.render(styleIncome, "+"+c.Money(amount, currency))
}

// ProgressBar creates a simple progress bar.
func ProgressBar(percentage float64, width int) string {
	if percentage > 100 {
		percentage = 100
	}
	if percentage < 0 {
		percentage = 0
	}

	filled := int(float64(width) * percentage / 100)
	empty := width - filled

	bar := strings.Repeat("█", filled) + strings.Repeat("░", empty)
	return bar
}

// TableRow is one row for PrintTable.
type TableRow struct {
	Columns []string
}

// PrintTable prints a borderless table sized to the terminal.
func (c *CLIFormatter) PrintTable(headers []string, rows []TableRow) {
	if len(rows) == 0 {
		return
	}

	maxCell := max(c.Width()/2, 20)

	table := tablewriter.NewWriter(c.Writer)
	table.SetHeader(headers)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetColumnSeparator("")
	table.SetCenterSeparator("")
	table.SetRowSeparator("─")
	table.SetHeaderLine(true)
	table.SetTablePadding("  ")

	for _, row := range rows {
		cols := make([]string, len(row.Columns))
		for i, col := range row.Columns {
			cols[i] = fitCell(col, maxCell)
		}
		table.Append(cols)
	}
	table.Render()
}

// fitCell shortens plain text to width runes. Styled cells are kept whole.
func fitCell(s string, width int) string {
	if strings.Contains(s, "\x1b") || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

// PrintTransactions lists transactions newest first.
func (c *CLIFormatter) PrintTransactions(txs []model.Transaction, currency string) {
	if len(txs) == 0 {
		c.Muted("No transactions.")
		c.Muted("Use 'fintrack tx add <amount> <description>' to record one.")
		return
	}

	rows := make([]TableRow, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, TableRow{Columns: []string{
			tx.Date,
			tx.Description,
			tx.Category,
			c.SignedMoney(tx, currency),
			shortID(tx.ID),
		}})
	}
	c.PrintTable([]string{"Date", "Description", "Category", "Amount", "ID"}, rows)
}

// PrintTransaction prints one transaction.
func (c *CLIFormatter) PrintTransaction(tx model.Transaction, currency string) {
	c.Printf("%s  %s\n", c.SignedMoney(tx, currency), tx.Description)
	c.Printf("  Category: %s\n", tx.Category)
	c.Printf("  Date: %s\n", tx.Date)
	c.Printf("  ID: %s\n", tx.ID)
}

// PrintSummary prints totals and the per-category breakdown.
func (c *CLIFormatter) PrintSummary(sum state.Summary, currency string) {
	title := "All time"
	if sum.Month != "" {
		if t, err := time.Parse("2006-01", sum.Month); err == nil {
			title = t.Format("January 2006")
		}
	}
	c.Title(title)

	c.Printf("  Income:   %s\n", c.render(styleIncome, c.Money(sum.Income, currency)))
	c.Printf("  Expenses: %s\n", c.render(styleExpense, c.Money(sum.Expense, currency)))
	balanceStyle := styleBalance
	if sum.Balance.IsNegative() {
		balanceStyle = balanceStyle.Foreground(colorError)
	}
	c.Printf("  Balance:  %s\n", c.render(balanceStyle, c.Money(sum.Balance, currency)))
	c.Printf("  Transactions: %d\n", sum.Count)

	if len(sum.ByCategory) == 0 {
		return
	}

	c.Println()
	c.Title("Spending by category")
	width := 0
	for _, ct := range sum.ByCategory {
		width = max(width, lipgloss.Width(ct.Category))
	}
	for _, ct := range sum.ByCategory {
		share := ct.Share(sum.Expense)
		pct, _ := share.Float64()
		c.Printf("  %-*s %s %5s%%  %s\n",
			width, ct.Category,
			ProgressBar(pct, 20),
			share.StringFixed(1),
			c.Money(ct.Total, currency))
	}
}

// PrintNotes prints the items of one month.
func (c *CLIFormatter) PrintNotes(monthKey string, items []model.NoteItem) {
	c.Title(monthTitle(monthKey))
	if len(items) == 0 {
		c.Muted("  No notes for this month.")
		return
	}
	for _, it := range items {
		c.Printf("  • %s %s\n", it.Text, c.Note("("+shortID(it.ID)+")"))
	}
}

// PrintAllNotes prints every month's notes, newest month first.
func (c *CLIFormatter) PrintAllNotes(notes map[string][]model.NoteItem) {
	if len(notes) == 0 {
		c.Muted("No notes.")
		return
	}
	for i, key := range SortedMonthKeys(notes) {
		if i > 0 {
			c.Println()
		}
		c.PrintNotes(key, notes[key])
	}
}

// PrintNotifications lists reminders with their next fire time.
func (c *CLIFormatter) PrintNotifications(ns []model.Notification, entries []scheduler.Entry, now time.Time) {
	if len(ns) == 0 {
		c.Muted("No reminders.")
		c.Muted("Use 'fintrack remind add 20:00' to create one.")
		return
	}

	next := make(map[string]time.Time, len(entries))
	for _, e := range entries {
		next[e.ID] = e.NextFire
	}

	rows := make([]TableRow, 0, len(ns))
	for _, n := range ns {
		status := "off"
		if n.Enabled {
			status = "on"
		}
		nextFire := "-"
		if at, ok := next[n.ID]; ok {
			nextFire = fmt.Sprintf("%s (in %s)", FormatFireTime(at, now), FormatDuration(at.Sub(now)))
		}
		rows = append(rows, TableRow{Columns: []string{
			n.Time,
			string(n.Recurrence),
			status,
			n.Message,
			nextFire,
			shortID(n.ID),
		}})
	}
	c.PrintTable([]string{"Time", "Repeats", "Status", "Message", "Next", "ID"}, rows)
}

// PrintSettings prints the profile and display settings.
func (c *CLIFormatter) PrintSettings(st state.State) {
	c.Title("Settings")
	c.Printf("  User: %s\n", st.User.Name)
	if st.User.Logo != "" {
		c.Printf("  Logo: %s\n", st.User.Logo)
	}
	c.Printf("  Currency: %s\n", st.Currency)
	c.Printf("  Theme: %s\n", st.Theme)
}

// SortedMonthKeys returns note month keys newest first.
func SortedMonthKeys(notes map[string][]model.NoteItem) []string {
	keys := make([]string, 0, len(notes))
	for k := range notes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		yi, mi, _ := model.ParseMonthKey(keys[i])
		yj, mj, _ := model.ParseMonthKey(keys[j])
		if yi != yj {
			return yi > yj
		}
		return mi > mj
	})
	return keys
}

func monthTitle(monthKey string) string {
	ym, err := model.MonthKeyToYearMonth(monthKey)
	if err != nil {
		return monthKey
	}
	t, err := time.Parse("2006-01", ym)
	if err != nil {
		return monthKey
	}
	return t.Format("January 2006")
}

// shortID trims uuids for display; other ids are shown whole.
func shortID(id string) string {
	if len(id) == 36 && strings.Count(id, "-") == 4 {
		return id[:8]
	}
	return id
}

// PrintIntegrity prints a database check.
func (c *CLIFormatter) PrintIntegrity(status *storage.IntegrityStatus) {
	if status.Healthy {
		c.Success("Database is healthy (" + status.Backend + ")")
	} else {
		c.Error("Database check failed (" + status.Backend + ")")
	}

	tables := make([]string, 0, len(status.Rows))
	for t := range status.Rows {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		c.Printf("  %-18s %d rows\n", t, status.Rows[t])
	}
	for _, e := range status.Errors {
		c.Printf("  %s\n", c.render(styleError, e))
	}
}
