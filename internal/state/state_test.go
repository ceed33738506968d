package state

import (
	"context"
	"database/sql"
	stderrors "errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/fintrack/internal/clock"
	"github.com/manav03panchal/fintrack/internal/errors"
	"github.com/manav03panchal/fintrack/internal/migrate"
	"github.com/manav03panchal/fintrack/internal/model"
	"github.com/manav03panchal/fintrack/internal/notify"
	"github.com/manav03panchal/fintrack/internal/scheduler"
	"github.com/manav03panchal/fintrack/internal/storage"
)

var start = time.Date(2024, 3, 5, 8, 30, 0, 0, time.UTC)

// flakyRepo wraps the real schema store and can fail selected calls.
type flakyRepo struct {
	*storage.Store
	openErr  error
	writeErr error
}

func (r *flakyRepo) Open(ctx context.Context) (*sql.DB, error) {
	if r.openErr != nil {
		return nil, r.openErr
	}
	return r.Store.Open(ctx)
}

func (r *flakyRepo) UpsertTransaction(ctx context.Context, tx model.Transaction) error {
	if r.writeErr != nil {
		return errors.NewWriteError("upsert", "transaction", tx.ID, r.writeErr)
	}
	return r.Store.UpsertTransaction(ctx, tx)
}

func (r *flakyRepo) SetSetting(ctx context.Context, key, value string) error {
	if r.writeErr != nil {
		return errors.NewWriteError("set", "setting", key, r.writeErr)
	}
	return r.Store.SetSetting(ctx, key, value)
}

func (r *flakyRepo) UpsertNotification(ctx context.Context, n model.Notification) error {
	if r.writeErr != nil {
		return errors.NewWriteError("upsert", "notification", n.ID, r.writeErr)
	}
	return r.Store.UpsertNotification(ctx, n)
}

func (r *flakyRepo) UpsertNote(ctx context.Context, monthKey string, value model.NoteValue) error {
	if r.writeErr != nil {
		return errors.NewWriteError("upsert", "note", monthKey, r.writeErr)
	}
	return r.Store.UpsertNote(ctx, monthKey, value)
}

func (r *flakyRepo) DeleteTransaction(ctx context.Context, id string) error {
	if r.writeErr != nil {
		return errors.NewWriteError("delete", "transaction", id, r.writeErr)
	}
	return r.Store.DeleteTransaction(ctx, id)
}

func (r *flakyRepo) DeleteNote(ctx context.Context, monthKey string) error {
	if r.writeErr != nil {
		return errors.NewWriteError("delete", "note", monthKey, r.writeErr)
	}
	return r.Store.DeleteNote(ctx, monthKey)
}

func (r *flakyRepo) DeleteNotification(ctx context.Context, id string) error {
	if r.writeErr != nil {
		return errors.NewWriteError("delete", "notification", id, r.writeErr)
	}
	return r.Store.DeleteNotification(ctx, id)
}

type fakeChannel struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (f *fakeChannel) Name() string { return "fake" }

func (f *fakeChannel) Deliver(_ context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

type fakePermission struct {
	calls int
	err   error
}

func (p *fakePermission) RequestPermission(context.Context) error {
	p.calls++
	return p.err
}

type harness struct {
	store      *Store
	repo       *flakyRepo
	legacy     *storage.KV
	clock      *clock.Manual
	channel    *fakeChannel
	sched      *scheduler.Scheduler
	permission *fakePermission
}

func newHarness(t *testing.T, variant model.Variant) *harness {
	t.Helper()
	blobs, err := storage.OpenKV(storage.KVOptions{InMemory: true})
	require.NoError(t, err)
	legacy, err := storage.OpenKV(storage.KVOptions{InMemory: true})
	require.NoError(t, err)

	db := storage.New(storage.NewSnapshotBackend(blobs, ""))
	t.Cleanup(func() {
		db.Close()
		blobs.Close()
		legacy.Close()
	})

	h := &harness{
		repo:       &flakyRepo{Store: db},
		legacy:     legacy,
		clock:      clock.NewManual(start),
		channel:    &fakeChannel{},
		permission: &fakePermission{},
	}
	h.sched = scheduler.New(scheduler.Options{
		Clock:   h.clock,
		Channel: h.channel,
		Journal: db,
	})
	h.store = New(Deps{
		Repo:       h.repo,
		Migrator:   migrate.New(db, legacy, variant).WithClock(h.clock.Now),
		Scheduler:  h.sched,
		Permission: h.permission,
		Variant:    variant,
		Clock:      h.clock,
	})
	return h
}

func bootedHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, model.VariantWeb)
	require.NoError(t, h.store.Boot(context.Background()))
	return h
}

func expense(desc string, amount float64, category, date string) model.Transaction {
	return model.Transaction{
		Description: desc,
		Amount:      amount,
		Type:        model.TxExpense,
		Category:    category,
		Date:        date,
	}
}

// =============================================================================
// Reducer Tests
// =============================================================================

func TestReduceIsPure(t *testing.T) {
	before := State{
		Transactions:  []model.Transaction{{ID: "a", Amount: 1}, {ID: "b", Amount: 2}},
		Notes:         map[string][]model.NoteItem{"2024-2": {{ID: "n1", Text: "x"}}},
		Notifications: []model.Notification{{ID: "r1", Time: "08:00"}},
	}
	snapshot := before.Clone()

	after := Reduce(before, PutTransaction{Transaction: model.Transaction{ID: "a", Amount: 10}})
	after = Reduce(after, DropTransaction{ID: "b"})
	after = Reduce(after, SetNote{MonthKey: "2024-2"})
	after = Reduce(after, PutNotification{Notification: model.Notification{ID: "r2", Time: "09:00"}})
	after = Reduce(after, SetCurrency{Currency: "EUR"})

	assert.Equal(t, snapshot, before)
	assert.Equal(t, []model.Transaction{{ID: "a", Amount: 10}}, after.Transactions)
	assert.Empty(t, after.Notes)
	assert.Len(t, after.Notifications, 2)
	assert.Equal(t, "EUR", after.Currency)
}

func TestReduceUpsertOrder(t *testing.T) {
	s := State{Transactions: []model.Transaction{{ID: "a"}, {ID: "b"}}}

	s = Reduce(s, PutTransaction{Transaction: model.Transaction{ID: "c"}})
	assert.Equal(t, "c", s.Transactions[0].ID, "new transactions go first")

	s = Reduce(s, PutTransaction{Transaction: model.Transaction{ID: "b", Description: "edited"}})
	require.Len(t, s.Transactions, 3)
	assert.Equal(t, "edited", s.Transactions[2].Description, "edits keep position")

	s = Reduce(s, PutNotification{Notification: model.Notification{ID: "r1"}})
	s = Reduce(s, PutNotification{Notification: model.Notification{ID: "r2"}})
	assert.Equal(t, "r2", s.Notifications[1].ID, "new notifications go last")
}

func TestReduceHydrateCopies(t *testing.T) {
	loaded := State{Transactions: []model.Transaction{{ID: "a"}}}
	s := Reduce(State{}, Hydrate{State: loaded})
	s.Transactions[0].ID = "changed"
	assert.Equal(t, "a", loaded.Transactions[0].ID)
}

func TestCloneIsDeep(t *testing.T) {
	s := State{
		Notes:         map[string][]model.NoteItem{"2024-0": {{ID: "1", Text: "a"}}},
		Notifications: []model.Notification{{ID: "r"}},
	}
	c := s.Clone()
	c.Notes["2024-0"][0].Text = "b"
	c.Notifications[0].ID = "x"
	assert.Equal(t, "a", s.Notes["2024-0"][0].Text)
	assert.Equal(t, "r", s.Notifications[0].ID)
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestActionsBeforeBootAreRejected(t *testing.T) {
	h := newHarness(t, model.VariantWeb)
	ctx := context.Background()

	assert.Equal(t, StatusLoading, h.store.Status())
	_, err := h.store.AddTransaction(ctx, expense("Coffee", 3, "Food", "2024-03-05"))
	assert.ErrorIs(t, err, errors.ErrNotBooted)
	assert.ErrorIs(t, h.store.ChangeCurrency(ctx, "EUR"), errors.ErrNotBooted)
	assert.Empty(t, h.store.Snapshot().Transactions)
}

func TestBootFailure(t *testing.T) {
	h := newHarness(t, model.VariantWeb)
	ctx := context.Background()
	h.repo.openErr = stderrors.Join(errors.ErrStorageUnavailable, stderrors.New("disk gone"))

	err := h.store.Boot(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStorageUnavailable)
	assert.Equal(t, StatusFailed, h.store.Status())
	assert.ErrorIs(t, h.store.Err(), errors.ErrStorageUnavailable)

	_, err = h.store.AddTransaction(ctx, expense("Coffee", 3, "Food", "2024-03-05"))
	assert.ErrorIs(t, err, errors.ErrNotBooted)

	// Boot can be retried once storage is back.
	h.repo.openErr = nil
	require.NoError(t, h.store.Boot(ctx))
	assert.Equal(t, StatusReady, h.store.Status())
	assert.NoError(t, h.store.Err())
}

func TestBootDefaults(t *testing.T) {
	t.Run("web", func(t *testing.T) {
		h := bootedHarness(t)
		snap := h.store.Snapshot()
		assert.Equal(t, "USD", snap.Currency)
		assert.Equal(t, model.DefaultUser(), snap.User)
		assert.Empty(t, snap.Transactions)
		assert.Empty(t, snap.Notifications)
	})

	t.Run("mobile", func(t *testing.T) {
		h := newHarness(t, model.VariantMobile)
		require.NoError(t, h.store.Boot(context.Background()))
		assert.Equal(t, "INR", h.store.Snapshot().Currency)
	})
}

func TestBootMigratesLegacyData(t *testing.T) {
	h := newHarness(t, model.VariantWeb)
	require.NoError(t, h.legacy.SetBytes(migrate.KeyTransactions,
		[]byte(`[{"id":"t1","description":"Rent","amount":"900","type":"expense","category":"Housing","date":"2024-03-01"}]`)))
	require.NoError(t, h.legacy.SetBytes(migrate.KeyNotes,
		[]byte(`{"2024-3":"bought groceries","2024-2":{"text":"budget","date":"2024-03-10"}}`)))
	require.NoError(t, h.legacy.SetBytes(migrate.KeyUser, []byte(`{"name":"Ada"}`)))
	require.NoError(t, h.legacy.SetBytes(migrate.KeyCurrency, []byte(`"EUR"`)))

	require.NoError(t, h.store.Boot(context.Background()))
	snap := h.store.Snapshot()

	require.Len(t, snap.Transactions, 1)
	assert.Equal(t, 900.0, snap.Transactions[0].Amount)
	assert.Equal(t, "Ada", snap.User.Name)
	assert.Equal(t, "EUR", snap.Currency)

	require.Len(t, snap.Notes["2024-3"], 1)
	assert.Equal(t, "bought groceries", snap.Notes["2024-3"][0].Text)
	assert.Equal(t, "legacy-2024-3", snap.Notes["2024-3"][0].ID)

	require.Len(t, snap.Notes["2024-2"], 1)
	assert.Equal(t, "budget", snap.Notes["2024-2"][0].Text)
}

func TestBootIsIdempotent(t *testing.T) {
	h := bootedHarness(t)
	v := h.store.Version()
	require.NoError(t, h.store.Boot(context.Background()))
	assert.Equal(t, v, h.store.Version())
}

func TestBootArmsStoredReminders(t *testing.T) {
	h := newHarness(t, model.VariantWeb)
	ctx := context.Background()
	require.NoError(t, h.repo.Store.UpsertNotification(ctx, model.Notification{
		ID: "r1", Time: "09:00", Message: "Log it", Enabled: true, Recurrence: model.RecurDaily,
	}))

	require.NoError(t, h.store.Boot(ctx))
	assert.True(t, h.sched.Armed("r1"))

	h.clock.Set(start.Add(30 * time.Minute))
	assert.Equal(t, 1, h.channel.count())
}

func TestShutdown(t *testing.T) {
	h := bootedHarness(t)
	ctx := context.Background()

	_, err := h.store.AddNotification(ctx, model.Notification{Time: "09:00", Enabled: true})
	require.NoError(t, err)
	require.Equal(t, 1, h.sched.Len())

	require.NoError(t, h.store.Shutdown(ctx))
	assert.Equal(t, StatusShutdown, h.store.Status())
	assert.Equal(t, 0, h.sched.Len())
	assert.ErrorIs(t, h.store.ChangeCurrency(ctx, "EUR"), errors.ErrShutdown)
	assert.ErrorIs(t, h.store.Boot(ctx), errors.ErrShutdown)
	assert.NoError(t, h.store.Shutdown(ctx))
}

// =============================================================================
// Transaction Action Tests
// =============================================================================

func TestAddTransaction(t *testing.T) {
	h := bootedHarness(t)
	ctx := context.Background()

	tx, err := h.store.AddTransaction(ctx, model.Transaction{Description: "Coffee", Amount: 3.5})
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, model.TxExpense, tx.Type)
	assert.Equal(t, model.DefaultCategory, tx.Category)
	assert.Equal(t, "2024-03-05", tx.Date)

	snap := h.store.Snapshot()
	require.Len(t, snap.Transactions, 1)
	assert.Equal(t, tx, snap.Transactions[0])

	stored := h.repo.Store.ListTransactions(ctx)
	require.Len(t, stored, 1)
	assert.Equal(t, tx, stored[0])
}

func TestAddTransactionValidation(t *testing.T) {
	h := bootedHarness(t)

	_, err := h.store.AddTransaction(context.Background(), model.Transaction{
		Description: "Bad", Amount: 1, Date: "2024-13-40",
	})
	assert.True(t, errors.IsUserError(err))
	assert.Empty(t, h.store.Snapshot().Transactions)
}

func TestFailedWriteLeavesSnapshotUntouched(t *testing.T) {
	h := bootedHarness(t)
	ctx := context.Background()
	v := h.store.Version()

	h.repo.writeErr = stderrors.New("disk full")

	_, err := h.store.AddTransaction(ctx, expense("Coffee", 3, "Food", "2024-03-05"))
	var we *errors.WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, "transaction", we.Entity)

	assert.Error(t, h.store.ChangeCurrency(ctx, "EUR"))
	_, err = h.store.AddNotification(ctx, model.Notification{Time: "09:00", Enabled: true})
	assert.Error(t, err)

	snap := h.store.Snapshot()
	assert.Empty(t, snap.Transactions)
	assert.Equal(t, "USD", snap.Currency)
	assert.Empty(t, snap.Notifications)
	assert.Equal(t, 0, h.sched.Len())
	assert.Equal(t, v, h.store.Version())
}

func TestFailedDeleteLeavesSnapshotUntouched(t *testing.T) {
	h := bootedHarness(t)
	ctx := context.Background()

	tx, err := h.store.AddTransaction(ctx, expense("Coffee", 3, "Food", "2024-03-05"))
	require.NoError(t, err)
	require.NoError(t, h.store.UpdateNote(ctx, "2024-2", model.TextNote("budget review")))
	n, err := h.store.AddNotification(ctx, model.Notification{Time: "09:00", Enabled: true})
	require.NoError(t, err)
	v := h.store.Version()

	h.repo.writeErr = stderrors.New("disk full")

	err = h.store.DeleteTransaction(ctx, tx.ID)
	var we *errors.WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, "delete", we.Op)
	assert.Error(t, h.store.UpdateNote(ctx, "2024-2", model.TextNote("")))
	assert.Error(t, h.store.RemoveNotification(ctx, n.ID))

	snap := h.store.Snapshot()
	assert.Equal(t, []model.Transaction{tx}, snap.Transactions)
	assert.Len(t, snap.Notes["2024-2"], 1)
	assert.Equal(t, []model.Notification{n}, snap.Notifications)
	assert.True(t, h.sched.Armed(n.ID))
	assert.Equal(t, v, h.store.Version())

	assert.Len(t, h.repo.Store.ListTransactions(ctx), 1)
	assert.Len(t, h.repo.Store.ListNotifications(ctx), 1)
}

func TestEditTransaction(t *testing.T) {
	h := bootedHarness(t)
	ctx := context.Background()

	first, err := h.store.AddTransaction(ctx, expense("Coffee", 3, "Food", "2024-03-05"))
	require.NoError(t, err)
	_, err = h.store.AddTransaction(ctx, expense("Lunch", 12, "Food", "2024-03-05"))
	require.NoError(t, err)

	first.Amount = 4
	require.NoError(t, h.store.EditTransaction(ctx, first))

	snap := h.store.Snapshot()
	require.Len(t, snap.Transactions, 2)
	assert.Equal(t, 4.0, snap.Transactions[1].Amount)

	err = h.store.EditTransaction(ctx, expense("Ghost", 1, "Food", "2024-03-05"))
	assert.True(t, errors.IsUserError(err), "missing id fails validation")

	ghost := expense("Ghost", 1, "Food", "2024-03-05")
	ghost.ID = "nope"
	assert.ErrorIs(t, h.store.EditTransaction(ctx, ghost), errors.ErrNotFound)
}

func TestDeleteTransaction(t *testing.T) {
	h := bootedHarness(t)
	ctx := context.Background()

	tx, err := h.store.AddTransaction(ctx, expense("Coffee", 3, "Food", "2024-03-05"))
	require.NoError(t, err)

	require.NoError(t, h.store.DeleteTransaction(ctx, tx.ID))
	assert.Empty(t, h.store.Snapshot().Transactions)
	assert.Empty(t, h.repo.Store.ListTransactions(ctx))

	assert.NoError(t, h.store.DeleteTransaction(ctx, tx.ID), "deleting twice is fine")
}

// =============================================================================
// Settings Action Tests
// =============================================================================

func TestUpdateUserMerges(t *testing.T) {
	h := bootedHarness(t)
	ctx := context.Background()

	u, err := h.store.UpdateUser(ctx, model.User{Logo: "ada.png"})
	require.NoError(t, err)
	assert.Equal(t, model.User{Name: model.DefaultUserName, Logo: "ada.png"}, u)

	u, err = h.store.UpdateUser(ctx, model.User{Name: "  Ada "})
	require.NoError(t, err)
	assert.Equal(t, model.User{Name: "Ada", Logo: "ada.png"}, u)
	assert.Equal(t, u, h.store.Snapshot().User)

	raw := h.repo.Store.GetSetting(ctx, model.SettingUser, "")
	assert.JSONEq(t, `{"name":"Ada","logo":"ada.png"}`, raw)
}

func TestChangeCurrency(t *testing.T) {
	h := bootedHarness(t)
	ctx := context.Background()

	require.NoError(t, h.store.ChangeCurrency(ctx, " eur "))
	assert.Equal(t, "EUR", h.store.Snapshot().Currency)
	assert.Equal(t, "EUR", h.repo.Store.GetSetting(ctx, model.SettingCurrency, ""))

	err := h.store.ChangeCurrency(ctx, "euros")
	assert.True(t, errors.IsUserError(err))
	assert.Equal(t, "EUR", h.store.Snapshot().Currency)
}

func TestToggleTheme(t *testing.T) {
	h := bootedHarness(t)
	ctx := context.Background()

	initial := h.store.Snapshot().Theme
	next, err := h.store.ToggleTheme(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, initial, next)
	assert.Equal(t, next, h.repo.Store.GetSetting(ctx, model.SettingTheme, ""))

	back, err := h.store.ToggleTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, initial, back)
}

// =============================================================================
// Note Action Tests
// =============================================================================

func TestUpdateNote(t *testing.T) {
	h := bootedHarness(t)
	ctx := context.Background()

	require.NoError(t, h.store.UpdateNote(ctx, "2024-2", model.TextNote("budget review")))
	items := h.store.Snapshot().Notes["2024-2"]
	require.Len(t, items, 1)
	assert.Equal(t, "budget review", items[0].Text)
	assert.Equal(t, map[string]string{"2024-2": "budget review"}, h.repo.Store.ListNotes(ctx))

	require.NoError(t, h.store.UpdateNote(ctx, "2024-2", model.TextNote("   ")))
	assert.NotContains(t, h.store.Snapshot().Notes, "2024-2")
	assert.Empty(t, h.repo.Store.ListNotes(ctx))

	assert.True(t, errors.IsUserError(h.store.UpdateNote(ctx, "2024-12", model.TextNote("x"))))
}

func TestNoteItems(t *testing.T) {
	h := bootedHarness(t)
	ctx := context.Background()

	require.NoError(t, h.store.UpdateNote(ctx, "2024-2", model.TextNote("old text")))

	added, err := h.store.AddNoteItem(ctx, "2024-2", "new item")
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)

	items := h.store.Snapshot().Notes["2024-2"]
	require.Len(t, items, 2)
	assert.Equal(t, "old text", items[0].Text)
	assert.Equal(t, "new item", items[1].Text)

	require.NoError(t, h.store.RemoveNoteItem(ctx, "2024-2", items[0].ID))
	items = h.store.Snapshot().Notes["2024-2"]
	require.Len(t, items, 1)
	assert.Equal(t, added.ID, items[0].ID)

	assert.ErrorIs(t, h.store.RemoveNoteItem(ctx, "2024-2", "missing"), errors.ErrNotFound)

	require.NoError(t, h.store.RemoveNoteItem(ctx, "2024-2", added.ID))
	assert.NotContains(t, h.store.Snapshot().Notes, "2024-2")
	assert.Empty(t, h.repo.Store.ListNotes(ctx))

	_, err = h.store.AddNoteItem(ctx, "2024-2", "  ")
	assert.True(t, errors.IsUserError(err))
}

// =============================================================================
// Notification Action Tests
// =============================================================================

func TestAddNotificationSchedules(t *testing.T) {
	h := bootedHarness(t)
	ctx := context.Background()

	n, err := h.store.AddNotification(ctx, model.Notification{Time: "09:00", Enabled: true})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultMessage, n.Message)
	assert.Equal(t, model.RecurDaily, n.Recurrence)
	assert.Equal(t, 1, h.permission.calls)

	next, ok := h.sched.NextFire(n.ID)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC), next)

	h.clock.Set(next)
	assert.Equal(t, 1, h.channel.count())
	assert.True(t, h.sched.Armed(n.ID), "daily reminders re-arm")

	assert.Equal(t, []model.Notification{n}, h.store.Snapshot().Notifications)
}

func TestAddNotificationPermissionDenied(t *testing.T) {
	h := bootedHarness(t)
	h.permission.err = errors.ErrPermissionDenied

	n, err := h.store.AddNotification(context.Background(), model.Notification{Time: "09:00", Enabled: true})
	require.NoError(t, err)
	assert.Len(t, h.store.Snapshot().Notifications, 1)
	assert.True(t, h.sched.Armed(n.ID))
}

func TestDisabledNotificationIsNotArmed(t *testing.T) {
	h := bootedHarness(t)

	n, err := h.store.AddNotification(context.Background(), model.Notification{Time: "09:00"})
	require.NoError(t, err)
	assert.False(t, h.sched.Armed(n.ID))
	assert.Equal(t, 0, h.permission.calls)
}

func TestEditNotificationReschedules(t *testing.T) {
	h := bootedHarness(t)
	ctx := context.Background()

	n, err := h.store.AddNotification(ctx, model.Notification{Time: "09:00", Enabled: true})
	require.NoError(t, err)

	n.Time = "07:00"
	require.NoError(t, h.store.EditNotification(ctx, n))
	next, ok := h.sched.NextFire(n.ID)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 6, 7, 0, 0, 0, time.UTC), next)

	n.Enabled = false
	require.NoError(t, h.store.EditNotification(ctx, n))
	assert.False(t, h.sched.Armed(n.ID))

	h.clock.Set(start.Add(48 * time.Hour))
	assert.Equal(t, 0, h.channel.count())

	ghost := model.Notification{ID: "ghost", Time: "09:00"}
	assert.ErrorIs(t, h.store.EditNotification(ctx, ghost), errors.ErrNotFound)
}

func TestRemoveNotification(t *testing.T) {
	h := bootedHarness(t)
	ctx := context.Background()

	n, err := h.store.AddNotification(ctx, model.Notification{Time: "09:00", Enabled: true})
	require.NoError(t, err)

	require.NoError(t, h.store.RemoveNotification(ctx, n.ID))
	assert.False(t, h.sched.Armed(n.ID))
	assert.Empty(t, h.store.Snapshot().Notifications)
	assert.Empty(t, h.repo.Store.ListNotifications(ctx))

	h.clock.Set(start.Add(time.Hour))
	assert.Equal(t, 0, h.channel.count())
}

// =============================================================================
// Observer Tests
// =============================================================================

func TestSubscribe(t *testing.T) {
	h := bootedHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch := h.store.Subscribe(ctx)
	require.NoError(t, h.store.ChangeCurrency(context.Background(), "EUR"))

	select {
	case v := <-ch:
		assert.Equal(t, h.store.Version(), v)
	case <-time.After(time.Second):
		t.Fatal("no version published")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestSubscribeKeepsLatestVersion(t *testing.T) {
	h := bootedHarness(t)
	ctx := context.Background()

	ch := h.store.Subscribe(ctx)
	require.NoError(t, h.store.ChangeCurrency(ctx, "EUR"))
	require.NoError(t, h.store.ChangeCurrency(ctx, "GBP"))
	require.NoError(t, h.store.ChangeCurrency(ctx, "JPY"))

	assert.Equal(t, h.store.Version(), <-ch)
}

func TestSubscribeClosedOnShutdown(t *testing.T) {
	h := bootedHarness(t)
	ch := h.store.Subscribe(context.Background())

	require.NoError(t, h.store.Shutdown(context.Background()))
	_, ok := <-ch
	assert.False(t, ok)

	_, ok = <-h.store.Subscribe(context.Background())
	assert.False(t, ok)
}

func TestShutdownReleasesSubscriptionWatchers(t *testing.T) {
	h := bootedHarness(t)
	base := runtime.NumGoroutine()

	var chans []<-chan uint64
	for i := 0; i < 20; i++ {
		chans = append(chans, h.store.Subscribe(context.Background()))
	}
	require.Greater(t, runtime.NumGoroutine(), base)

	require.NoError(t, h.store.Shutdown(context.Background()))
	for _, ch := range chans {
		_, ok := <-ch
		assert.False(t, ok)
	}
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= base
	}, time.Second, 10*time.Millisecond)
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func TestConcurrentActions(t *testing.T) {
	h := bootedHarness(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.store.AddNoteItem(ctx, "2024-2", "item")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, h.store.Snapshot().Notes["2024-2"], 20)
	assert.Equal(t, 0, h.store.locks.size())
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.size())

	acquired := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(20 * time.Millisecond):
	}

	unlockA()
	<-acquired
	unlockB()
	require.Eventually(t, func() bool { return k.size() == 0 }, time.Second, 5*time.Millisecond)
}

// =============================================================================
// Summary Tests
// =============================================================================

func TestSummarize(t *testing.T) {
	txs := []model.Transaction{
		{ID: "1", Amount: 1500, Type: model.TxIncome, Category: "Job", Date: "2024-03-01"},
		{ID: "2", Amount: 900, Type: model.TxExpense, Category: "Housing", Date: "2024-03-02"},
		{ID: "3", Amount: -40.10, Type: model.TxExpense, Category: "Food", Date: "2024-03-03"},
		{ID: "4", Amount: -19.90, Category: "Food", Date: "2024-03-04"},
		{ID: "5", Amount: 75, Type: model.TxExpense, Category: "", Date: "2024-03-05"},
		{ID: "6", Amount: 999, Type: model.TxExpense, Category: "Food", Date: "2024-02-28"},
	}

	sum := Summarize(txs, "2024-03")
	assert.Equal(t, 5, sum.Count)
	assert.True(t, decimal.NewFromInt(1500).Equal(sum.Income), sum.Income.String())
	assert.True(t, decimal.NewFromInt(1035).Equal(sum.Expense), sum.Expense.String())
	assert.True(t, decimal.NewFromInt(465).Equal(sum.Balance), sum.Balance.String())

	require.Len(t, sum.ByCategory, 3)
	assert.Equal(t, "Housing", sum.ByCategory[0].Category)
	assert.Equal(t, model.DefaultCategory, sum.ByCategory[1].Category)
	assert.Equal(t, "Food", sum.ByCategory[2].Category)
	assert.True(t, decimal.NewFromInt(60).Equal(sum.ByCategory[2].Total))
	assert.Equal(t, 2, sum.ByCategory[2].Count)

	assert.Equal(t, "87", sum.ByCategory[0].Share(sum.Expense).String())
	assert.True(t, sum.ByCategory[0].Share(decimal.Zero).IsZero())

	all := Summarize(txs, "")
	assert.Equal(t, 6, all.Count)
	assert.True(t, decimal.NewFromInt(2034).Equal(all.Expense))
}

func TestSummarizeEmpty(t *testing.T) {
	sum := Summarize(nil, "2024-03")
	assert.Zero(t, sum.Count)
	assert.True(t, sum.Balance.IsZero())
	assert.NotNil(t, sum.ByCategory)
}

func TestReloadPicksUpExternalWrites(t *testing.T) {
	h := bootedHarness(t)
	ctx := context.Background()

	n, err := h.store.AddNotification(ctx, model.Notification{Time: "09:00", Enabled: true})
	require.NoError(t, err)

	// Another process edits the database directly.
	require.NoError(t, h.repo.Store.DeleteNotification(ctx, n.ID))
	require.NoError(t, h.repo.Store.UpsertNotification(ctx, model.Notification{
		ID: "other", Time: "10:00", Message: "From elsewhere", Enabled: true, Recurrence: model.RecurDaily,
	}))
	require.NoError(t, h.repo.Store.SetSetting(ctx, model.SettingCurrency, "GBP"))

	require.NoError(t, h.store.Reload(ctx))

	snap := h.store.Snapshot()
	assert.Equal(t, "GBP", snap.Currency)
	require.Len(t, snap.Notifications, 1)
	assert.Equal(t, "other", snap.Notifications[0].ID)
	assert.False(t, h.sched.Armed(n.ID))
	assert.True(t, h.sched.Armed("other"))
}

func TestReloadKeepsFiredOneShotDisarmed(t *testing.T) {
	h := bootedHarness(t)
	ctx := context.Background()

	n, err := h.store.AddNotification(ctx, model.Notification{
		Time: "09:00", Enabled: true, Recurrence: model.RecurOnce,
	})
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	require.Equal(t, 1, h.channel.count())
	require.False(t, h.sched.Armed(n.ID))

	require.NoError(t, h.store.Reload(ctx))
	assert.False(t, h.sched.Armed(n.ID))

	h.clock.Advance(24 * time.Hour)
	assert.Equal(t, 1, h.channel.count())

	assert.Equal(t, []model.Notification{n}, h.store.Snapshot().Notifications)
	assert.Equal(t, []model.Notification{n}, h.repo.Store.ListNotifications(ctx))
}
