package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/manav03panchal/fintrack/internal/clock"
	"github.com/manav03panchal/fintrack/internal/errors"
	"github.com/manav03panchal/fintrack/internal/logging"
	"github.com/manav03panchal/fintrack/internal/migrate"
	"github.com/manav03panchal/fintrack/internal/model"
	"github.com/manav03panchal/fintrack/internal/notify"
	"github.com/manav03panchal/fintrack/internal/scheduler"
	"github.com/manav03panchal/fintrack/internal/storage"
)

// Repository is the schema store as seen by the state layer.
type Repository interface {
	Open(ctx context.Context) (*sql.DB, error)

	UpsertTransaction(ctx context.Context, tx model.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	ListTransactions(ctx context.Context) []model.Transaction

	UpsertNote(ctx context.Context, monthKey string, value model.NoteValue) error
	DeleteNote(ctx context.Context, monthKey string) error
	ListNotes(ctx context.Context) map[string]string

	GetSetting(ctx context.Context, key, fallback string) string
	SetSetting(ctx context.Context, key, value string) error

	UpsertNotification(ctx context.Context, n model.Notification) error
	DeleteNotification(ctx context.Context, id string) error
	ListNotifications(ctx context.Context) []model.Notification
}

var _ Repository = (*storage.Store)(nil)

// Migrator upgrades legacy data before the first read-back.
type Migrator interface {
	Run(ctx context.Context) (migrate.Result, error)
}

// Reminders arms and disarms reminder timers.
type Reminders interface {
	ScheduleAll(ctx context.Context, items []model.Notification) error
	ScheduleOne(ctx context.Context, item model.Notification) error
	Cancel(ctx context.Context, id string)
	Stop()
	Drain(ctx context.Context) error
}

var _ Reminders = (*scheduler.Scheduler)(nil)

// Deps are the collaborators of a Store. Repo is required.
type Deps struct {
	Repo     Repository
	Migrator Migrator
	// Scheduler defaults to a scheduler that discards deliveries.
	Scheduler Reminders
	// Permission is asked before an enabled reminder is saved.
	Permission notify.PermissionRequester
	Variant    model.Variant
	Clock      clock.Clock
}

// Store owns the snapshot and serializes the actions that change it.
type Store struct {
	repo       Repository
	migrator   Migrator
	sched      Reminders
	permission notify.PermissionRequester
	variant    model.Variant
	clock      clock.Clock
	logger     *slog.Logger

	bootMu sync.Mutex

	mu      sync.RWMutex
	state   State
	version uint64
	status  Status
	bootErr error

	locks *keyedMutex

	subsMu sync.RWMutex
	subs   map[string]chan uint64

	// closed by Shutdown; releases subscription watchers
	done     chan struct{}
	watchers sync.WaitGroup
}

// New creates a store in the Loading state. Call Boot before any action.
func New(deps Deps) *Store {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Scheduler == nil {
		deps.Scheduler = scheduler.New(scheduler.Options{Clock: deps.Clock})
	}
	if deps.Variant == "" {
		deps.Variant = model.VariantWeb
	}
	return &Store{
		repo:       deps.Repo,
		migrator:   deps.Migrator,
		sched:      deps.Scheduler,
		permission: deps.Permission,
		variant:    deps.Variant,
		clock:      deps.Clock,
		logger:     logging.Component("state"),
		state:      emptyState(deps.Variant),
		locks:      newKeyedMutex(),
		subs:       make(map[string]chan uint64),
		done:       make(chan struct{}),
	}
}

func emptyState(v model.Variant) State {
	return State{
		Transactions:  []model.Transaction{},
		User:          model.DefaultUser(),
		Currency:      v.DefaultCurrency(),
		Theme:         v.DefaultTheme(),
		Notes:         map[string][]model.NoteItem{},
		Notifications: []model.Notification{},
	}
}

// Boot runs the migrator, reads every entity family back, seeds the
// snapshot and arms the reminders. Only an unusable database fails boot;
// migration problems are logged. Calling Boot again after success is a
// no-op; after a failure it retries.
func (s *Store) Boot(ctx context.Context) error {
	s.bootMu.Lock()
	defer s.bootMu.Unlock()

	switch s.Status() {
	case StatusReady:
		return nil
	case StatusShutdown:
		return errors.ErrShutdown
	}

	start := time.Now()
	s.setStatus(StatusLoading, nil)

	if _, err := s.repo.Open(ctx); err != nil {
		s.setStatus(StatusFailed, err)
		s.logger.Error("boot failed", logging.KeyError, err)
		return err
	}

	if s.migrator != nil {
		res, err := s.migrator.Run(ctx)
		if err != nil {
			s.logger.Warn("legacy migration incomplete", logging.KeyError, err)
		} else {
			s.logger.Debug("legacy migration checked",
				"flat_storage", res.FlatStorageRan,
				"transactions", res.Transactions,
				"notes", res.Notes,
				"notification", res.Notification,
				"skipped", res.Skipped)
		}
	}

	loaded := s.load(ctx)

	s.mu.Lock()
	s.state = Reduce(s.state, Hydrate{State: loaded})
	s.version++
	v := s.version
	s.status = StatusReady
	s.bootErr = nil
	s.mu.Unlock()
	s.publish(v)

	if err := s.sched.ScheduleAll(ctx, loaded.Notifications); err != nil {
		s.logger.Warn("some reminders were not scheduled", logging.KeyError, err)
	}

	logging.LogOperation("state.boot", start,
		logging.KeyComponent, "state",
		"transactions", len(loaded.Transactions),
		"notifications", len(loaded.Notifications))
	return nil
}

// Reload reads every entity family again and resyncs the reminder timers.
// A long-running process uses it to pick up changes written by another
// process sharing the same database.
func (s *Store) Reload(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	start := time.Now()

	loaded := s.load(ctx)
	s.commit(Hydrate{State: loaded})

	if err := s.sched.ScheduleAll(ctx, loaded.Notifications); err != nil {
		s.logger.Warn("some reminders were not scheduled", logging.KeyError, err)
	}
	logging.LogOperation("state.reload", start,
		logging.KeyComponent, "state",
		"notifications", len(loaded.Notifications))
	return nil
}

// load reads the full state. Every read fails soft to its default.
func (s *Store) load(ctx context.Context) State {
	st := emptyState(s.variant)

	if txs := s.repo.ListTransactions(ctx); txs != nil {
		st.Transactions = txs
	}

	for key, raw := range s.repo.ListNotes(ctx) {
		items := model.DecodeNoteValue(raw).Normalize(key)
		if len(items) > 0 {
			st.Notes[key] = items
		}
	}

	st.User = s.loadUser(ctx)
	st.Currency = s.repo.GetSetting(ctx, model.SettingCurrency, s.variant.DefaultCurrency())
	st.Theme = s.variant.ResolveTheme(s.repo.GetSetting(ctx, model.SettingTheme, ""))

	if ns := s.repo.ListNotifications(ctx); ns != nil {
		st.Notifications = ns
	}
	return st
}

func (s *Store) loadUser(ctx context.Context) model.User {
	raw := s.repo.GetSetting(ctx, model.SettingUser, "")
	if raw == "" {
		return model.DefaultUser()
	}
	user := model.DefaultUser()
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.logger.Warn("read failure",
			logging.KeySettingKey, model.SettingUser,
			logging.KeyError, fmt.Errorf("%w: %v", errors.ErrReadFailure, err))
		return model.DefaultUser()
	}
	if user.Name == "" {
		user.Name = model.DefaultUserName
	}
	return user
}

// Shutdown disarms every reminder, rejects later actions and waits for
// in-flight deliveries until ctx ends. Subscriber channels are closed.
func (s *Store) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.status == StatusShutdown {
		s.mu.Unlock()
		return nil
	}
	s.status = StatusShutdown
	s.mu.Unlock()

	s.sched.Stop()
	err := s.sched.Drain(ctx)

	s.subsMu.Lock()
	close(s.done)
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subsMu.Unlock()
	s.watchers.Wait()

	s.logger.Debug("state store shut down")
	return err
}

// Status returns the lifecycle stage.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Err returns why Boot failed, or nil.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bootErr
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Version increases by one with every applied transition.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe returns a channel that receives the new version after each
// transition. Slow readers only see the latest version. The subscription
// ends, and the channel is closed, when ctx is cancelled or the store
// shuts down.
func (s *Store) Subscribe(ctx context.Context) <-chan uint64 {
	id := uuid.New().String()
	ch := make(chan uint64, 1)

	s.subsMu.Lock()
	if s.Status() == StatusShutdown {
		s.subsMu.Unlock()
		close(ch)
		return ch
	}
	s.subs[id] = ch
	s.watchers.Add(1)
	s.subsMu.Unlock()

	go func() {
		defer s.watchers.Done()
		select {
		case <-ctx.Done():
			s.unsubscribe(id)
		case <-s.done:
		}
	}()
	return ch
}

func (s *Store) unsubscribe(id string) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

// publish is called without s.mu held.
func (s *Store) publish(v uint64) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- v:
		default:
			// Replace the stale version the reader has not picked up.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

func (s *Store) setStatus(st Status, err error) {
	s.mu.Lock()
	s.status = st
	s.bootErr = err
	s.mu.Unlock()
}

// ready rejects actions outside the Ready stage.
func (s *Store) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch s.status {
	case StatusReady:
		return nil
	case StatusShutdown:
		return errors.ErrShutdown
	case StatusFailed:
		return fmt.Errorf("%w: %v", errors.ErrNotBooted, s.bootErr)
	default:
		return errors.ErrNotBooted
	}
}

// commit applies a to the snapshot and notifies subscribers.
func (s *Store) commit(a Action) {
	s.mu.Lock()
	s.state = Reduce(s.state, a)
	s.version++
	v := s.version
	s.mu.Unlock()
	s.publish(v)
}

// view runs fn against the current snapshot without copying it.
func (s *Store) view(fn func(st State)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state)
}
