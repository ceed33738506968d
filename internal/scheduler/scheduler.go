// Package scheduler turns reminder rows into live timers.
//
// Each reminder id owns at most one armed timer. Arming always cancels the
// previous timer first, and every timer carries a generation number so a
// callback that lost a race with Cancel can never fire or re-arm.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/manav03panchal/fintrack/internal/clock"
	"github.com/manav03panchal/fintrack/internal/errors"
	"github.com/manav03panchal/fintrack/internal/logging"
	"github.com/manav03panchal/fintrack/internal/model"
	"github.com/manav03panchal/fintrack/internal/notify"
)

// Journal persists the next fire time of armed reminders so a restart can
// tell which reminders it missed. Batch groups the writes of one
// ScheduleAll pass so the backing store flushes once.
type Journal interface {
	SaveNextFire(ctx context.Context, id string, at time.Time) error
	ClearNextFire(ctx context.Context, id string) error
	LoadNextFires(ctx context.Context) map[string]time.Time
	Batch(ctx context.Context, fn func(ctx context.Context) error) error
}

// Options configures a Scheduler.
type Options struct {
	Clock   clock.Clock
	Channel notify.Channel
	Journal Journal

	// CatchUpMissed delivers once, during ScheduleAll, every reminder whose
	// persisted fire time has already passed. Without it, past-due rows are
	// left alone for a process that does catch up.
	CatchUpMissed bool
}

// Entry describes one armed reminder.
type Entry struct {
	ID       string    `json:"id"`
	Time     string    `json:"time"`
	Message  string    `json:"message"`
	NextFire time.Time `json:"next_fire"`
}

type armed struct {
	item  model.Notification
	timer clock.Timer
	gen   uint64
	next  time.Time
}

// Scheduler keeps one timer per enabled reminder.
type Scheduler struct {
	clock   clock.Clock
	channel notify.Channel
	journal Journal
	catchUp bool

	mu      sync.Mutex
	entries map[string]*armed
	gen     uint64
	stopped bool

	// one-shot reminders that fired, keyed by id; ScheduleAll leaves them
	// disarmed until their row changes
	spent map[string]model.Notification

	// in-flight deliveries
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler. A nil clock means the real clock; a nil channel
// discards deliveries.
func New(opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Channel == nil {
		opts.Channel = notify.Discard{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		clock:   opts.Clock,
		channel: opts.Channel,
		journal: opts.Journal,
		catchUp: opts.CatchUpMissed,
		entries: make(map[string]*armed),
		spent:   make(map[string]model.Notification),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ComputeNextFire returns the next moment, strictly after now, at which the
// wall clock in now's location reads hhmm:00.000.
func ComputeNextFire(hhmm string, now time.Time) (time.Time, error) {
	hour, minute, err := model.ParseTimeOfDay(hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", errors.ErrInvalidTime, err)
	}
	sched, err := cron.ParseStandard(fmt.Sprintf("%d %d * * *", minute, hour))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", errors.ErrInvalidTime, err)
	}
	return sched.Next(now), nil
}

// ScheduleOne cancels any timer for item.ID and, if the reminder is
// enabled, arms a new one for its next fire time. A one-shot reminder that
// already fired is armed again.
func (s *Scheduler) ScheduleOne(ctx context.Context, item model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return errors.ErrShutdown
	}
	delete(s.spent, item.ID)
	return s.scheduleLocked(ctx, item, true)
}

// ScheduleAll schedules every reminder. With catch-up enabled, reminders
// whose persisted fire time passed while nothing was running are delivered
// once in the background first. Timers and journal rows for ids not in
// items are dropped, so calling it again with a fresh list resyncs. A
// one-shot reminder that fired stays disarmed unless its row changed.
func (s *Scheduler) ScheduleAll(ctx context.Context, items []model.Notification) error {
	if s.journal == nil {
		return s.scheduleAll(ctx, items)
	}
	return s.journal.Batch(ctx, func(ctx context.Context) error {
		return s.scheduleAll(ctx, items)
	})
}

func (s *Scheduler) scheduleAll(ctx context.Context, items []model.Notification) error {
	log := logging.Component("scheduler")
	now := s.clock.Now()

	var persisted map[string]time.Time
	if s.journal != nil {
		persisted = s.journal.LoadNextFires(ctx)
	}

	known := make(map[string]bool, len(items))
	var errs []error
	for _, item := range items {
		known[item.ID] = true

		at, ok := persisted[item.ID]
		missed := ok && item.Enabled && !at.After(now)
		if missed && s.catchUp {
			log.Info("delivering missed reminder",
				logging.KeyNotificationID, item.ID,
				logging.KeyNextFire, at)
			s.deliverAsync(item, at)
		}

		if err := s.resync(ctx, item, !missed || s.catchUp); err != nil {
			log.Warn("reminder not scheduled",
				logging.KeyNotificationID, item.ID,
				logging.KeyError, err)
			errs = append(errs, fmt.Errorf("reminder %s: %w", item.ID, err))
		}
	}

	s.mu.Lock()
	for id := range s.entries {
		if !known[id] {
			s.cancelLocked(id)
		}
	}
	for id := range s.spent {
		if !known[id] {
			delete(s.spent, id)
		}
	}
	for id := range persisted {
		if !known[id] {
			s.clearJournalLocked(ctx, id)
		}
	}
	s.mu.Unlock()

	log.Debug("reminders scheduled", logging.KeyCount, s.Len())
	return errors.Join(errs...)
}

// resync schedules item unless it is a one-shot that already fired with
// the same content. With persist false the journal row is left as is.
func (s *Scheduler) resync(ctx context.Context, item model.Notification, persist bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return errors.ErrShutdown
	}
	if prev, ok := s.spent[item.ID]; ok {
		if prev == item {
			return nil
		}
		delete(s.spent, item.ID)
	}
	return s.scheduleLocked(ctx, item, persist)
}

func (s *Scheduler) scheduleLocked(ctx context.Context, item model.Notification, persist bool) error {
	s.cancelLocked(item.ID)

	if !item.Enabled {
		s.clearJournalLocked(ctx, item.ID)
		return nil
	}

	if err := s.armLocked(ctx, item, persist); err != nil {
		s.clearJournalLocked(ctx, item.ID)
		return err
	}
	return nil
}

// Cancel disarms the reminder and forgets its persisted fire time.
func (s *Scheduler) Cancel(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(id)
	delete(s.spent, id)
	s.clearJournalLocked(ctx, id)
}

// Stop disarms every timer and rejects later scheduling. Persisted fire
// times are kept so the next process can catch up. Deliveries already
// running are not interrupted; use Drain to wait for them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	for id := range s.entries {
		s.cancelLocked(id)
	}
	logging.Component("scheduler").Debug("scheduler stopped")
}

// Drain waits for in-flight deliveries. When ctx ends first, the
// deliveries' context is cancelled and ctx.Err() is returned.
func (s *Scheduler) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

// Armed reports whether the reminder has a live timer.
func (s *Scheduler) Armed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

// Len returns the number of live timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// NextFire returns when the reminder's timer is due.
func (s *Scheduler) NextFire(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return time.Time{}, false
	}
	return e.next, true
}

// Entries lists the armed reminders, soonest first.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	out := make([]Entry, 0, len(s.entries))
	for id, e := range s.entries {
		out = append(out, Entry{ID: id, Time: e.item.Time, Message: e.item.Message, NextFire: e.next})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].NextFire.Equal(out[j].NextFire) {
			return out[i].ID < out[j].ID
		}
		return out[i].NextFire.Before(out[j].NextFire)
	})
	return out
}

func (s *Scheduler) armLocked(ctx context.Context, item model.Notification, persist bool) error {
	now := s.clock.Now()
	next, err := ComputeNextFire(item.Time, now)
	if err != nil {
		return err
	}

	s.gen++
	gen := s.gen
	id := item.ID
	e := &armed{item: item, gen: gen, next: next}
	e.timer = s.clock.AfterFunc(next.Sub(now), func() { s.fire(id, gen) })
	s.entries[id] = e

	if s.journal != nil && persist {
		if err := s.journal.SaveNextFire(ctx, id, next); err != nil {
			logging.Component("scheduler").Warn("next fire not persisted",
				logging.KeyNotificationID, id,
				logging.KeyError, err)
		}
	}
	return nil
}

func (s *Scheduler) cancelLocked(id string) {
	if e, ok := s.entries[id]; ok {
		e.timer.Stop()
		delete(s.entries, id)
	}
}

func (s *Scheduler) clearJournalLocked(ctx context.Context, id string) {
	if s.journal == nil {
		return
	}
	if err := s.journal.ClearNextFire(ctx, id); err != nil {
		logging.Component("scheduler").Warn("next fire not cleared",
			logging.KeyNotificationID, id,
			logging.KeyError, err)
	}
}

// fire runs on the timer's goroutine. Daily reminders re-arm before the
// delivery so a slow channel cannot delay the next day's timer.
func (s *Scheduler) fire(id string, gen uint64) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || e.gen != gen || s.stopped {
		s.mu.Unlock()
		return
	}

	item := e.item
	firedAt := s.clock.Now()
	delete(s.entries, id)

	ctx := s.ctx
	if item.Rearms() {
		if err := s.armLocked(ctx, item, true); err != nil {
			logging.Component("scheduler").Error("reminder not re-armed",
				logging.KeyNotificationID, id,
				logging.KeyError, err)
		}
	} else {
		s.spent[id] = item
		s.clearJournalLocked(ctx, id)
	}
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	s.deliver(item, firedAt)
}

func (s *Scheduler) deliverAsync(item model.Notification, at time.Time) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.deliver(item, at)
	}()
}

func (s *Scheduler) deliver(item model.Notification, at time.Time) {
	msg := notify.NewReminderMessage(item, at)
	start := time.Now()
	if err := s.channel.Deliver(s.ctx, msg); err != nil {
		text := "delivery failed"
		if errors.Is(err, errors.ErrPermissionDenied) {
			text = "delivery not permitted"
		}
		logging.Component("scheduler").Warn(text,
			logging.KeyNotificationID, item.ID,
			"channel", s.channel.Name(),
			logging.KeyError, err)
		return
	}
	logging.LogOperation("deliver", start,
		logging.KeyComponent, "scheduler",
		logging.KeyNotificationID, item.ID)
}
