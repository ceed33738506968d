package migrate

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/fintrack/internal/model"
	"github.com/manav03panchal/fintrack/internal/storage"
)

var fixedNow = time.Date(2024, 4, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store  *storage.Store
	legacy *storage.KV
}

func setup(t *testing.T) *fixture {
	t.Helper()
	blobs, err := storage.OpenKV(storage.KVOptions{InMemory: true})
	require.NoError(t, err)
	legacy, err := storage.OpenKV(storage.KVOptions{InMemory: true})
	require.NoError(t, err)

	store := storage.New(storage.NewSnapshotBackend(blobs, ""))
	t.Cleanup(func() {
		store.Close()
		blobs.Close()
		legacy.Close()
	})
	return &fixture{store: store, legacy: legacy}
}

func (f *fixture) migrator(variant model.Variant) *Migrator {
	return New(f.store, f.legacy, variant).WithClock(func() time.Time { return fixedNow })
}

func (f *fixture) put(t *testing.T, key, value string) {
	t.Helper()
	require.NoError(t, f.legacy.SetBytes(key, []byte(value)))
}

func TestMigrateFlatStorage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.put(t, KeyTransactions, `[
		{"id":"t1","description":"Salary","amount":"1500","type":"income","category":"Job","date":"2024-04-01"},
		{"id":1712345,"amount":12.5},
		"garbage",
		{"description":"no id","amount":"oops","type":"expense","date":"2024-03-02"}
	]`)
	f.put(t, KeyNotes, `{"2024-3":"bought groceries","2024-2":{"text":"budget","date":"2024-03-10"},"bad-key":"x"}`)
	f.put(t, KeyUser, `{"name":"Ada","logo":"ada.png"}`)
	f.put(t, KeyCurrency, "EUR")
	f.put(t, KeyTheme, `"light"`)

	res, err := f.migrator(model.VariantWeb).MigrateFlatStorageIfEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, res.FlatStorageRan)
	assert.Equal(t, 3, res.Transactions)
	assert.Equal(t, 2, res.Notes)
	assert.Equal(t, 2, res.Skipped) // "garbage" and "bad-key"

	txs := map[string]model.Transaction{}
	for _, tx := range f.store.ListTransactions(ctx) {
		txs[tx.ID] = tx
	}
	require.Len(t, txs, 3)

	assert.Equal(t, 1500.0, txs["t1"].Amount)
	assert.Equal(t, model.TxIncome, txs["t1"].Type)

	numeric := txs["1712345"]
	assert.Equal(t, 12.5, numeric.Amount)
	assert.Equal(t, model.TxExpense, numeric.Type)
	assert.Equal(t, model.DefaultCategory, numeric.Category)
	assert.Equal(t, "2024-04-15", numeric.Date)

	notes := f.store.ListNotes(ctx)
	assert.Equal(t, "bought groceries", notes["2024-3"])
	assert.Contains(t, notes["2024-2"], `"budget"`)

	var user model.User
	require.NoError(t, json.Unmarshal([]byte(f.store.GetSetting(ctx, model.SettingUser, "")), &user))
	assert.Equal(t, model.User{Name: "Ada", Logo: "ada.png"}, user)
	assert.Equal(t, "EUR", f.store.GetSetting(ctx, model.SettingCurrency, ""))
	assert.Equal(t, "light", f.store.GetSetting(ctx, model.SettingTheme, ""))
}

func TestMigrateFlatStorageIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.put(t, KeyTransactions, `[{"id":"t1","amount":10,"type":"income","date":"2024-04-01"}]`)

	m := f.migrator(model.VariantWeb)
	first, err := m.MigrateFlatStorageIfEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, first.FlatStorageRan)
	rowsAfterFirst := f.store.ListTransactions(ctx)

	// Legacy data changing afterwards must not leak in.
	f.put(t, KeyTransactions, `[{"id":"t2","amount":99}]`)

	second, err := m.MigrateFlatStorageIfEmpty(ctx)
	require.NoError(t, err)
	assert.False(t, second.FlatStorageRan)
	assert.Equal(t, rowsAfterFirst, f.store.ListTransactions(ctx))
}

func TestMigrateFlatStorageDefaults(t *testing.T) {
	tests := []struct {
		variant  model.Variant
		currency string
		theme    string
	}{
		{model.VariantWeb, "USD", model.ThemeDark},
		{model.VariantMobile, "INR", model.ThemeComplementary},
	}

	for _, tt := range tests {
		t.Run(string(tt.variant), func(t *testing.T) {
			f := setup(t)
			ctx := context.Background()
			f.put(t, KeyUser, `{not json`)
			f.put(t, KeyTransactions, `{"not":"an array"}`)

			res, err := f.migrator(tt.variant).MigrateFlatStorageIfEmpty(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, res.Skipped)
			assert.Zero(t, res.Transactions)

			assert.JSONEq(t, `{"name":"Guest"}`, f.store.GetSetting(ctx, model.SettingUser, ""))
			assert.Equal(t, tt.currency, f.store.GetSetting(ctx, model.SettingCurrency, ""))
			assert.Equal(t, tt.theme, f.store.GetSetting(ctx, model.SettingTheme, ""))
		})
	}
}

func TestPerMonthNotesWin(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.put(t, KeyNotes, `{"2024-3":"old text","2024-1":"kept"}`)
	f.put(t, MonthNotesPrefix+"2024-3", `[{"id":"n1","text":"new item","createdAt":"2024-04-02T10:00:00Z"}]`)
	f.put(t, MonthNotesPrefix+"2024-5", `{"monthKey":"2024-5","notes":[{"id":"n2","text":"june","createdAt":"x"}]}`)
	f.put(t, MonthNotesPrefix+"2024-6", `[]`)
	f.put(t, MonthNotesPrefix+"junk", `[]`)

	res, err := f.migrator(model.VariantWeb).MigrateFlatStorageIfEmpty(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Notes)

	notes := f.store.ListNotes(ctx)
	assert.Equal(t, "kept", notes["2024-1"])

	items := model.DecodeNoteValue(notes["2024-3"]).Items()
	require.Len(t, items, 1)
	assert.Equal(t, "new item", items[0].Text)

	assert.Contains(t, notes["2024-5"], "june")
	assert.NotContains(t, notes, "2024-6")
}

func TestMigrateWithoutLegacySource(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := New(f.store, nil, model.VariantWeb).Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.FlatStorageRan)
	assert.Zero(t, res.Skipped)
	assert.Equal(t, "USD", f.store.GetSetting(ctx, model.SettingCurrency, ""))
}

func TestMigrateLegacyNotificationBlob(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.store.SetSetting(ctx, model.SettingNotifications, `{"enabled":true}`))

	m := f.migrator(model.VariantWeb)
	res, err := m.MigrateLegacyNotificationBlobIfEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, res.Notification)

	list := f.store.ListNotifications(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, model.Notification{
		ID:         model.LegacyNotificationID,
		Time:       model.DefaultTime,
		Message:    model.DefaultMessage,
		Enabled:    true,
		Recurrence: model.RecurDaily,
	}, list[0])

	// Second run is a no-op even if the blob changes.
	require.NoError(t, f.store.SetSetting(ctx, model.SettingNotifications, `{"time":"07:00","enabled":true}`))
	res, err = m.MigrateLegacyNotificationBlobIfEmpty(ctx)
	require.NoError(t, err)
	assert.False(t, res.NotificationRan)
	assert.Len(t, f.store.ListNotifications(ctx), 1)
}

func TestMigrateLegacyNotificationBlobCorrupt(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for _, raw := range []string{`{broken`, `null`} {
		require.NoError(t, f.store.SetSetting(ctx, model.SettingNotifications, raw))
		res, err := f.migrator(model.VariantWeb).MigrateLegacyNotificationBlobIfEmpty(ctx)
		require.NoError(t, err, raw)
		assert.False(t, res.Notification, raw)
	}
	assert.Empty(t, f.store.ListNotifications(ctx))
}

// failingCounts is a Target whose count queries fail.
type failingCounts struct {
	Target
}

func (failingCounts) CountTransactions(context.Context) (int, error) {
	return 0, stderrors.New("disk I/O error")
}

func (failingCounts) CountNotifications(context.Context) (int, error) {
	return 0, stderrors.New("disk I/O error")
}

func TestCountFailureDoesNotMigrate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.put(t, KeyTransactions, `[{"id":"t1"}]`)

	m := New(failingCounts{Target: f.store}, f.legacy, model.VariantWeb)
	_, err := m.MigrateFlatStorageIfEmpty(ctx)
	assert.Error(t, err)
	_, err = m.MigrateLegacyNotificationBlobIfEmpty(ctx)
	assert.Error(t, err)

	assert.Empty(t, f.store.ListTransactions(ctx))
}
