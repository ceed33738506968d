package storage

import (
	"context"
	"database/sql"
	stderrors "errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/manav03panchal/fintrack/internal/errors"
	"github.com/manav03panchal/fintrack/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to create an in-memory key-value store for testing
func setupTestKV(t *testing.T) *KV {
	t.Helper()
	kv, err := OpenKV(KVOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return kv
}

// Helper to create a snapshot-backed store for testing
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(NewSnapshotBackend(setupTestKV(t), ""))
	t.Cleanup(func() { s.Close() })
	return s
}

// countingBackend counts flushes and can be told to fail them.
type countingBackend struct {
	Backend
	flushes  atomic.Int32
	failWith error
}

func (b *countingBackend) Flush(ctx context.Context, db *sql.DB) error {
	b.flushes.Add(1)
	if b.failWith != nil {
		return b.failWith
	}
	return b.Backend.Flush(ctx, db)
}

// =============================================================================
// KV Tests
// =============================================================================

func TestKVBytesAndJSON(t *testing.T) {
	kv := setupTestKV(t)

	_, err := kv.GetBytes("missing")
	assert.True(t, IsErrKeyNotFound(err))

	require.NoError(t, kv.SetBytes("currency", []byte("EUR")))
	s, err := kv.GetString("currency")
	require.NoError(t, err)
	assert.Equal(t, "EUR", s)

	require.NoError(t, kv.SetJSON("user", model.User{Name: "Ada"}))
	var u model.User
	require.NoError(t, kv.GetJSON("user", &u))
	assert.Equal(t, "Ada", u.Name)

	ok, err := kv.Exists("user")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, kv.Delete("user"))
	ok, err = kv.Exists("user")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKVListByPrefix(t *testing.T) {
	kv := setupTestKV(t)
	require.NoError(t, kv.SetBytes("notes:2024-3", []byte("[]")))
	require.NoError(t, kv.SetBytes("notes:2024-4", []byte("[]")))
	require.NoError(t, kv.SetBytes("notes", []byte("{}")))
	require.NoError(t, kv.SetBytes("theme", []byte("dark")))

	keys, err := kv.ListByPrefix("notes:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"notes:2024-3", "notes:2024-4"}, keys)
}

// =============================================================================
// Store Tests
// =============================================================================

func TestOpenIsMemoized(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	db1, err := s.Open(ctx)
	require.NoError(t, err)
	db2, err := s.Open(ctx)
	require.NoError(t, err)
	assert.Same(t, db1, db2)
}

func TestOpenFailureIsStorageUnavailable(t *testing.T) {
	s := New(NewFileBackend(filepath.Join(t.TempDir(), "x.db"), "postgres"))
	_, err := s.Open(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStorageUnavailable)
	assert.Equal(t, errors.CategoryStorage, errors.Classify(err))
}

func TestUpsertTransactionReplacesByID(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertTransaction(ctx, model.Transaction{
		ID: "t1", Amount: 10, Type: model.TxIncome, Category: "Salary", Date: "2024-04-01",
	}))
	require.NoError(t, s.UpsertTransaction(ctx, model.Transaction{
		ID: "t1", Amount: 25, Type: model.TxExpense, Category: "Food", Date: "2024-04-01",
	}))

	txs := s.ListTransactions(ctx)
	require.Len(t, txs, 1)
	assert.Equal(t, "t1", txs[0].ID)
	assert.Equal(t, 25.0, txs[0].Amount)
	assert.Equal(t, model.TxExpense, txs[0].Type)

	n, err := s.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestListTransactionsCoercesLegacyRows(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	db, err := s.Open(ctx)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO transactions (id, description, amount, type, category, date)
		VALUES ('a', NULL, '12.5', NULL, NULL, '2024-01-02'),
		       ('b', 'bad', 'n/a', 'income', 'Gift', '2024-02-03')`)
	require.NoError(t, err)

	txs := s.ListTransactions(ctx)
	require.Len(t, txs, 2)

	// Newest date first.
	assert.Equal(t, "b", txs[0].ID)
	assert.Equal(t, 0.0, txs[0].Amount)

	assert.Equal(t, "a", txs[1].ID)
	assert.Equal(t, 12.5, txs[1].Amount)
	assert.Equal(t, model.TxExpense, txs[1].Type)
	assert.Equal(t, model.DefaultCategory, txs[1].Category)
}

func TestDeleteTransaction(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertTransaction(ctx, model.Transaction{ID: "t1", Date: "2024-04-01"}))
	require.NoError(t, s.DeleteTransaction(ctx, "t1"))
	assert.Empty(t, s.ListTransactions(ctx))

	// Deleting a missing id is not an error.
	assert.NoError(t, s.DeleteTransaction(ctx, "t1"))
}

func TestNotesRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertNote(ctx, "2024-3", model.TextNote("bought groceries")))
	require.NoError(t, s.UpsertNote(ctx, "2024-4", model.ItemsNote([]model.NoteItem{
		{ID: "n1", Text: "rent", CreatedAt: "2024-05-01T00:00:00Z"},
	})))

	notes := s.ListNotes(ctx)
	assert.Equal(t, "bought groceries", notes["2024-3"])
	assert.JSONEq(t, `[{"id":"n1","text":"rent","createdAt":"2024-05-01T00:00:00Z"}]`, notes["2024-4"])

	require.NoError(t, s.DeleteNote(ctx, "2024-3"))
	notes = s.ListNotes(ctx)
	assert.NotContains(t, notes, "2024-3")
	assert.Len(t, notes, 1)
}

func TestSettings(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	assert.Equal(t, "USD", s.GetSetting(ctx, model.SettingCurrency, "USD"))

	require.NoError(t, s.SetSetting(ctx, model.SettingCurrency, "EUR"))
	require.NoError(t, s.SetSetting(ctx, model.SettingCurrency, "GBP"))
	assert.Equal(t, "GBP", s.GetSetting(ctx, model.SettingCurrency, "USD"))

	require.NoError(t, s.SetSetting(ctx, model.SettingTheme, ""))
	assert.Equal(t, "dark", s.GetSetting(ctx, model.SettingTheme, "dark"), "empty value falls back")
}

func TestNotifications(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	n := model.Notification{ID: "r1", Time: "08:00", Message: "log expenses", Enabled: true, Recurrence: model.RecurOnce}
	require.NoError(t, s.UpsertNotification(ctx, n))

	db, err := s.Open(ctx)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO notifications (id, time, message, enabled, recurrence) VALUES ('r2', '09:00', 'm', NULL, NULL)`)
	require.NoError(t, err)

	list := s.ListNotifications(ctx)
	require.Len(t, list, 2)
	assert.Equal(t, n, list[0])
	assert.False(t, list[1].Enabled)
	assert.Equal(t, model.RecurDaily, list[1].Recurrence)

	count, err := s.CountNotifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, s.SaveNextFire(ctx, "r1", time.Now()))
	require.NoError(t, s.DeleteNotification(ctx, "r1"))
	assert.Len(t, s.ListNotifications(ctx), 1)
	assert.NotContains(t, s.LoadNextFires(ctx), "r1")
}

func TestNextFireJournal(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 4, 2, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveNextFire(ctx, "r1", at))
	fires := s.LoadNextFires(ctx)
	require.Contains(t, fires, "r1")
	assert.True(t, at.Equal(fires["r1"]))

	db, err := s.Open(ctx)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO reminder_schedule (id, next_fire_at) VALUES ('bad', 'tomorrow')`)
	require.NoError(t, err)
	assert.Len(t, s.LoadNextFires(ctx), 1, "unparsable rows are skipped")

	require.NoError(t, s.ClearNextFire(ctx, "r1"))
	assert.Empty(t, s.LoadNextFires(ctx))
}

func TestFlushFailureIsWriteError(t *testing.T) {
	kv := setupTestKV(t)
	backend := &countingBackend{Backend: NewSnapshotBackend(kv, "")}
	s := New(backend)
	defer s.Close()
	ctx := context.Background()

	_, err := s.Open(ctx)
	require.NoError(t, err)

	backend.failWith = stderrors.New("quota exceeded")
	err = s.UpsertTransaction(ctx, model.Transaction{ID: "t1"})
	require.Error(t, err)

	werr, ok := errors.AsWriteError(err)
	require.True(t, ok)
	assert.Equal(t, "upsert", werr.Op)
	assert.Equal(t, "transaction", werr.Entity)
	assert.Equal(t, "t1", werr.ID)
	backend.failWith = nil
}

func TestBatchFlushesOnce(t *testing.T) {
	kv := setupTestKV(t)
	backend := &countingBackend{Backend: NewSnapshotBackend(kv, "")}
	s := New(backend)
	defer s.Close()
	ctx := context.Background()

	_, err := s.Open(ctx)
	require.NoError(t, err)
	before := backend.flushes.Load()

	err = s.Batch(ctx, func(ctx context.Context) error {
		for _, id := range []string{"a", "b", "c"} {
			if err := s.UpsertTransaction(ctx, model.Transaction{ID: id}); err != nil {
				return err
			}
		}
		return s.SetSetting(ctx, model.SettingCurrency, "EUR")
	})
	require.NoError(t, err)
	assert.Equal(t, before+1, backend.flushes.Load())

	// Unbatched writes flush every time.
	require.NoError(t, s.SetSetting(ctx, model.SettingTheme, "light"))
	assert.Equal(t, before+2, backend.flushes.Load())
}

func TestSnapshotBackendSurvivesReopen(t *testing.T) {
	kv := setupTestKV(t)
	ctx := context.Background()

	first := New(NewSnapshotBackend(kv, ""))
	require.NoError(t, first.UpsertTransaction(ctx, model.Transaction{ID: "t1", Amount: 5, Date: "2024-04-01"}))
	require.NoError(t, first.SetSetting(ctx, model.SettingCurrency, "EUR"))
	require.NoError(t, first.UpsertNote(ctx, "2024-3", model.TextNote("hello")))
	require.NoError(t, first.Close())

	snapshot, err := kv.GetBytes(SnapshotKey)
	require.NoError(t, err)
	assert.NotEmpty(t, snapshot)

	second := New(NewSnapshotBackend(kv, ""))
	defer second.Close()

	txs := second.ListTransactions(ctx)
	require.Len(t, txs, 1)
	assert.Equal(t, 5.0, txs[0].Amount)
	assert.Equal(t, "EUR", second.GetSetting(ctx, model.SettingCurrency, "USD"))
	assert.Equal(t, "hello", second.ListNotes(ctx)["2024-3"])
}

func TestFileBackendPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "fintrack.db")
	ctx := context.Background()

	first := New(NewFileBackend(path, ""))
	require.NoError(t, first.UpsertNotification(ctx, model.Notification{
		ID: "r1", Time: "20:00", Message: "m", Enabled: true, Recurrence: model.RecurDaily,
	}))
	require.NoError(t, first.Close())

	second := New(NewFileBackend(path, DriverSQLite))
	defer second.Close()
	list := second.ListNotifications(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, "r1", list[0].ID)
}

func TestCheckIntegrity(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertTransaction(ctx, model.Transaction{ID: "t1"}))

	status := s.CheckIntegrity(ctx)
	assert.True(t, status.Healthy, status.Errors)
	assert.Equal(t, "snapshot", status.Backend)
	assert.Equal(t, 1, status.Rows["transactions"])
	assert.Equal(t, 0, status.Rows["notifications"])
}

func TestCheckDriver(t *testing.T) {
	assert.NoError(t, checkDriver(""))
	assert.NoError(t, checkDriver(DriverSQLite))
	assert.Error(t, checkDriver("mysql"))
	if cgoDriverAvailable {
		assert.NoError(t, checkDriver(DriverCGO))
	} else {
		assert.Error(t, checkDriver(DriverCGO))
	}
}

func TestDiskSpace(t *testing.T) {
	info, err := GetDiskSpace(filepath.Join(t.TempDir(), "does", "not", "exist"))
	require.NoError(t, err)
	assert.Greater(t, info.TotalBytes, uint64(0))
	assert.GreaterOrEqual(t, info.FreePercent(), 0.0)
}

func TestHeadroom(t *testing.T) {
	assert.Equal(t, HeadroomCritical, (&DiskSpaceInfo{FreeBytes: 1 << 20}).Headroom())
	assert.Equal(t, HeadroomLow, (&DiskSpaceInfo{FreeBytes: 20 << 20}).Headroom())
	assert.Equal(t, HeadroomOK, (&DiskSpaceInfo{FreeBytes: 1 << 30}).Headroom())
	assert.Equal(t, uint64(20), (&DiskSpaceInfo{FreeBytes: 20 << 20}).FreeMB())
	assert.Zero(t, (&DiskSpaceInfo{}).FreePercent())
}
