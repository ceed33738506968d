// Package migrate imports pre-relational data into the schema store.
//
// Both routines are guarded by a row count rather than a flag, so running
// them again once data exists is a no-op. Missing or corrupt legacy values
// never abort a run: each is logged and replaced by its default.
package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/manav03panchal/fintrack/internal/errors"
	"github.com/manav03panchal/fintrack/internal/logging"
	"github.com/manav03panchal/fintrack/internal/model"
	"github.com/manav03panchal/fintrack/internal/storage"
)

// Legacy flat-storage keys.
const (
	KeyTransactions  = "transactions"
	KeyNotes         = "notes"
	KeyUser          = "user"
	KeyCurrency      = "currency"
	KeyTheme         = "theme"
	MonthNotesPrefix = "notes:"
)

// Source is the read-only legacy key-value store.
type Source interface {
	GetBytes(key string) ([]byte, error)
	ListByPrefix(prefix string) ([]string, error)
}

// Target is the subset of the schema store the migrator writes through.
type Target interface {
	CountTransactions(ctx context.Context) (int, error)
	CountNotifications(ctx context.Context) (int, error)
	UpsertTransaction(ctx context.Context, tx model.Transaction) error
	UpsertNote(ctx context.Context, monthKey string, value model.NoteValue) error
	GetSetting(ctx context.Context, key, fallback string) string
	SetSetting(ctx context.Context, key, value string) error
	UpsertNotification(ctx context.Context, n model.Notification) error
	Batch(ctx context.Context, fn func(ctx context.Context) error) error
}

var _ Target = (*storage.Store)(nil)

// Result summarises one migration run.
type Result struct {
	FlatStorageRan  bool `json:"flat_storage_ran"`
	Transactions    int  `json:"transactions"`
	Notes           int  `json:"notes"`
	NotificationRan bool `json:"notification_ran"`
	Notification    bool `json:"notification"`
	Skipped         int  `json:"skipped"`
}

// Migrator moves legacy data into the schema store.
type Migrator struct {
	target  Target
	source  Source
	variant model.Variant
	now     func() time.Time
	logger  *slog.Logger
}

// New creates a migrator. A nil source means there is no legacy store;
// the flat-storage step then only writes defaults. The variant picks the
// currency and theme written when the legacy store has none.
func New(target Target, source Source, variant model.Variant) *Migrator {
	return &Migrator{
		target:  target,
		source:  source,
		variant: variant,
		now:     time.Now,
		logger:  logging.Component("migrate"),
	}
}

// WithClock overrides the time source used for defaulted dates.
func (m *Migrator) WithClock(now func() time.Time) *Migrator {
	m.now = now
	return m
}

// Run performs both migrations in order.
func (m *Migrator) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	defer logging.LogOperation("migrate.run", start)

	res, err := m.MigrateFlatStorageIfEmpty(ctx)
	if err != nil {
		return res, err
	}
	notif, err := m.MigrateLegacyNotificationBlobIfEmpty(ctx)
	res.NotificationRan = notif.NotificationRan
	res.Notification = notif.Notification
	res.Skipped += notif.Skipped
	return res, err
}

// skip logs a malformed legacy value.
func (m *Migrator) skip(res *Result, what string, err error) {
	res.Skipped++
	m.logger.Warn("skipping legacy data",
		"item", what,
		logging.KeyError, fmt.Errorf("%w: %v", errors.ErrMalformedLegacyData, err))
}

// read fetches a legacy key. A missing key or source reports ok=false
// without logging.
func (m *Migrator) read(res *Result, key string) ([]byte, bool) {
	if m.source == nil {
		return nil, false
	}
	data, err := m.source.GetBytes(key)
	if storage.IsErrKeyNotFound(err) {
		return nil, false
	}
	if err != nil {
		m.skip(res, key, err)
		return nil, false
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, false
	}
	return data, true
}

// MigrateFlatStorageIfEmpty imports legacy transactions, notes, user,
// currency and theme when the transactions table is empty. All writes
// share one batch.
func (m *Migrator) MigrateFlatStorageIfEmpty(ctx context.Context) (Result, error) {
	var res Result

	count, err := m.target.CountTransactions(ctx)
	if err != nil {
		return res, fmt.Errorf("checking transactions: %w", err)
	}
	if count > 0 {
		m.logger.Debug("transactions present, skipping flat storage migration", logging.KeyCount, count)
		return res, nil
	}
	res.FlatStorageRan = true

	txs := m.legacyTransactions(&res)
	notes := m.legacyNotes(&res)
	user := m.legacyUser(&res)
	currency := m.legacyString(&res, KeyCurrency, m.variant.DefaultCurrency())
	theme := m.legacyString(&res, KeyTheme, m.variant.DefaultTheme())

	userJSON, err := json.Marshal(user)
	if err != nil {
		return res, fmt.Errorf("encoding user: %w", err)
	}

	err = m.target.Batch(ctx, func(ctx context.Context) error {
		for _, tx := range txs {
			if err := m.target.UpsertTransaction(ctx, tx); err != nil {
				return err
			}
			res.Transactions++
		}
		for key, value := range notes {
			if err := m.target.UpsertNote(ctx, key, value); err != nil {
				return err
			}
			res.Notes++
		}
		if err := m.target.SetSetting(ctx, model.SettingUser, string(userJSON)); err != nil {
			return err
		}
		if err := m.target.SetSetting(ctx, model.SettingCurrency, currency); err != nil {
			return err
		}
		return m.target.SetSetting(ctx, model.SettingTheme, theme)
	})
	if err != nil {
		return res, err
	}

	m.logger.Info("flat storage migrated",
		"transactions", res.Transactions,
		"notes", res.Notes,
		"skipped", res.Skipped)
	return res, nil
}

// legacyTransactions decodes the transactions array one element at a time
// so a single bad record does not discard the rest.
func (m *Migrator) legacyTransactions(res *Result) []model.Transaction {
	data, ok := m.read(res, KeyTransactions)
	if !ok {
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		m.skip(res, KeyTransactions, err)
		return nil
	}

	now := m.now()
	txs := make([]model.Transaction, 0, len(raw))
	for i, item := range raw {
		tx, err := decodeLegacyTransaction(item, now)
		if err != nil {
			m.skip(res, fmt.Sprintf("%s[%d]", KeyTransactions, i), err)
			continue
		}
		txs = append(txs, tx)
	}
	return txs
}

func decodeLegacyTransaction(data []byte, now time.Time) (model.Transaction, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return model.Transaction{}, err
	}

	tx := model.Transaction{
		ID:          stringField(fields["id"]),
		Description: stringField(fields["description"]),
		Amount:      model.CoerceAmount(fields["amount"]),
		Type:        model.TxType(stringField(fields["type"])),
		Category:    stringField(fields["category"]),
		Date:        stringField(fields["date"]),
	}
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	tx.ApplyDefaults(now)
	return tx, nil
}

// stringField renders a loosely typed JSON value. Numeric ids from older
// builds keep their digits.
func stringField(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// legacyNotes merges the month-keyed notes blob with per-month item
// arrays; the per-month arrays win.
func (m *Migrator) legacyNotes(res *Result) map[string]model.NoteValue {
	notes := map[string]model.NoteValue{}

	if data, ok := m.read(res, KeyNotes); ok {
		var blob map[string]json.RawMessage
		if err := json.Unmarshal(data, &blob); err != nil {
			m.skip(res, KeyNotes, err)
		} else {
			for key, raw := range blob {
				if _, _, err := model.ParseMonthKey(key); err != nil {
					m.skip(res, KeyNotes+"."+key, err)
					continue
				}
				if string(raw) == "null" {
					continue
				}
				value := model.DecodeNoteValue(string(raw))
				if !value.IsBlank() {
					notes[key] = value
				}
			}
		}
	}

	if m.source == nil {
		return notes
	}
	keys, err := m.source.ListByPrefix(MonthNotesPrefix)
	if err != nil {
		m.skip(res, MonthNotesPrefix+"*", err)
		return notes
	}
	for _, k := range keys {
		monthKey := strings.TrimPrefix(k, MonthNotesPrefix)
		if _, _, err := model.ParseMonthKey(monthKey); err != nil {
			m.skip(res, k, err)
			continue
		}
		data, ok := m.read(res, k)
		if !ok {
			continue
		}
		items, err := decodeMonthItems(data)
		if err != nil {
			m.skip(res, k, err)
			continue
		}
		if len(items) > 0 {
			notes[monthKey] = model.ItemsNote(items)
		}
	}
	return notes
}

// decodeMonthItems accepts a bare item array or the {monthKey, notes} record.
func decodeMonthItems(data []byte) ([]model.NoteItem, error) {
	var items []model.NoteItem
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}
	var record struct {
		Notes []model.NoteItem `json:"notes"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return record.Notes, nil
}

func (m *Migrator) legacyUser(res *Result) model.User {
	data, ok := m.read(res, KeyUser)
	if !ok {
		return model.DefaultUser()
	}
	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		m.skip(res, KeyUser, err)
		return model.DefaultUser()
	}
	if user.Name == "" {
		user.Name = model.DefaultUserName
	}
	return user
}

// legacyString reads a plain string value. Values written as JSON strings
// are unquoted.
func (m *Migrator) legacyString(res *Result, key, fallback string) string {
	data, ok := m.read(res, key)
	if !ok {
		return fallback
	}
	s := strings.TrimSpace(string(data))
	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal([]byte(s), &unquoted); err != nil {
			m.skip(res, key, err)
			return fallback
		}
		s = unquoted
	}
	if s == "" {
		return fallback
	}
	return s
}

// legacyNotificationBlob is the single reminder stored as a setting.
type legacyNotificationBlob struct {
	Time    string `json:"time"`
	Message string `json:"message"`
	Enabled bool   `json:"enabled"`
}

// MigrateLegacyNotificationBlobIfEmpty upgrades the "notifications"
// setting into one daily reminder row when the table is empty.
func (m *Migrator) MigrateLegacyNotificationBlobIfEmpty(ctx context.Context) (Result, error) {
	var res Result

	count, err := m.target.CountNotifications(ctx)
	if err != nil {
		return res, fmt.Errorf("checking notifications: %w", err)
	}
	if count > 0 {
		return res, nil
	}
	res.NotificationRan = true

	raw := strings.TrimSpace(m.target.GetSetting(ctx, model.SettingNotifications, ""))
	if raw == "" || raw == "null" {
		return res, nil
	}

	var blob legacyNotificationBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		m.skip(&res, model.SettingNotifications, err)
		return res, nil
	}

	n := model.Notification{
		ID:         model.LegacyNotificationID,
		Time:       blob.Time,
		Message:    blob.Message,
		Enabled:    blob.Enabled,
		Recurrence: model.RecurDaily,
	}
	n.ApplyDefaults()

	if err := m.target.UpsertNotification(ctx, n); err != nil {
		return res, err
	}
	res.Notification = true
	m.logger.Info("legacy reminder migrated", logging.KeyNotificationID, n.ID)
	return res, nil
}
