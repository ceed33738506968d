package output

import (
	"time"

	"github.com/manav03panchal/fintrack/internal/migrate"
	"github.com/manav03panchal/fintrack/internal/model"
	"github.com/manav03panchal/fintrack/internal/scheduler"
	"github.com/manav03panchal/fintrack/internal/state"
	"github.com/manav03panchal/fintrack/internal/storage"
)

// JSONFormatter provides JSON-specific formatting.
type JSONFormatter struct {
	*Formatter
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(f *Formatter) *JSONFormatter {
	return &JSONFormatter{Formatter: f}
}

// TransactionsResponse represents the transaction list output in JSON.
type TransactionsResponse struct {
	Transactions []model.Transaction `json:"transactions"`
	Currency     string              `json:"currency"`
	TotalCount   int                 `json:"total_count"`
	ShownCount   int                 `json:"shown_count"`
}

// TransactionResponse represents a single changed transaction in JSON.
type TransactionResponse struct {
	Status      string            `json:"status"`
	Transaction model.Transaction `json:"transaction"`
}

// SummaryResponse represents summary output in JSON.
type SummaryResponse struct {
	Currency string        `json:"currency"`
	Summary  state.Summary `json:"summary"`
}

// NotesResponse represents note output in JSON, keyed by month key.
type NotesResponse struct {
	Notes map[string][]model.NoteItem `json:"notes"`
}

// NotificationOutput represents a reminder in JSON output.
type NotificationOutput struct {
	model.Notification
	NextFire string `json:"next_fire,omitempty"`
}

// NotificationsResponse represents the reminder list output in JSON.
type NotificationsResponse struct {
	Notifications []NotificationOutput `json:"notifications"`
}

// SettingsResponse represents settings output in JSON.
type SettingsResponse struct {
	User     model.User `json:"user"`
	Currency string     `json:"currency"`
	Theme    string     `json:"theme"`
}

// MigrateResponse represents migrate command output in JSON.
type MigrateResponse struct {
	Status string         `json:"status"`
	Result migrate.Result `json:"result"`
}

// ErrorResponse represents an error in JSON.
type ErrorResponse struct {
	Status     string `json:"status"`
	Error      string `json:"error"`
	Category   string `json:"category,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// NewNotificationOutputs joins reminders with their armed fire times.
func NewNotificationOutputs(ns []model.Notification, entries []scheduler.Entry) []NotificationOutput {
	next := make(map[string]time.Time, len(entries))
	for _, e := range entries {
		next[e.ID] = e.NextFire
	}
	out := make([]NotificationOutput, len(ns))
	for i, n := range ns {
		out[i] = NotificationOutput{Notification: n}
		if at, ok := next[n.ID]; ok {
			out[i].NextFire = at.Format(time.RFC3339)
		}
	}
	return out
}

// PrintTransactions outputs transactions in JSON format.
func (j *JSONFormatter) PrintTransactions(txs []model.Transaction, currency string, total int) error {
	if txs == nil {
		txs = []model.Transaction{}
	}
	return j.JSON(TransactionsResponse{
		Transactions: txs,
		Currency:     currency,
		TotalCount:   total,
		ShownCount:   len(txs),
	})
}

// PrintTransaction outputs a changed transaction in JSON format.
func (j *JSONFormatter) PrintTransaction(status string, tx model.Transaction) error {
	return j.JSON(TransactionResponse{Status: status, Transaction: tx})
}

// PrintSummary outputs a summary in JSON format.
func (j *JSONFormatter) PrintSummary(sum state.Summary, currency string) error {
	return j.JSON(SummaryResponse{Currency: currency, Summary: sum})
}

// PrintNotes outputs notes in JSON format.
func (j *JSONFormatter) PrintNotes(notes map[string][]model.NoteItem) error {
	if notes == nil {
		notes = map[string][]model.NoteItem{}
	}
	return j.JSON(NotesResponse{Notes: notes})
}

// PrintNotifications outputs reminders in JSON format.
func (j *JSONFormatter) PrintNotifications(ns []model.Notification, entries []scheduler.Entry) error {
	return j.JSON(NotificationsResponse{Notifications: NewNotificationOutputs(ns, entries)})
}

// PrintSettings outputs settings in JSON format.
func (j *JSONFormatter) PrintSettings(st state.State) error {
	return j.JSON(SettingsResponse{User: st.User, Currency: st.Currency, Theme: st.Theme})
}

// PrintMigrate outputs a migration result in JSON format.
func (j *JSONFormatter) PrintMigrate(res migrate.Result) error {
	return j.JSON(MigrateResponse{Status: "ok", Result: res})
}

// PrintIntegrity outputs a database check in JSON format.
func (j *JSONFormatter) PrintIntegrity(status *storage.IntegrityStatus) error {
	return j.JSON(status)
}

// PrintError outputs an error in JSON format.
func (j *JSONFormatter) PrintError(errMsg, category, suggestion string) error {
	return j.JSON(ErrorResponse{
		Status:     "error",
		Error:      errMsg,
		Category:   category,
		Suggestion: suggestion,
	})
}
