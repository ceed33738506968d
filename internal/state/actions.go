package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/manav03panchal/fintrack/internal/errors"
	"github.com/manav03panchal/fintrack/internal/logging"
	"github.com/manav03panchal/fintrack/internal/model"
	"github.com/manav03panchal/fintrack/internal/validate"
)

// Lock keys. Settings share one namespace with a key per setting.
const (
	lockTx           = "tx:"
	lockNote         = "note:"
	lockSetting      = "setting:"
	lockNotification = "notification:"
)

// ============================================================================
// Transactions
// ============================================================================

// AddTransaction stores a new transaction and prepends it to the snapshot.
// An empty ID is generated and an empty date becomes today.
func (s *Store) AddTransaction(ctx context.Context, tx model.Transaction) (model.Transaction, error) {
	ctx = logging.EnsureActionID(ctx)
	if err := s.ready(); err != nil {
		return model.Transaction{}, err
	}
	start := time.Now()

	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	tx.ApplyDefaults(s.clock.Now())
	if err := validate.Transaction(tx); err != nil {
		return model.Transaction{}, err
	}

	unlock := s.locks.Lock(lockTx + tx.ID)
	defer unlock()

	if err := s.repo.UpsertTransaction(ctx, tx); err != nil {
		return model.Transaction{}, err
	}
	s.commit(PutTransaction{Transaction: tx})

	logging.FromContext(ctx).Debug("transaction added",
		logging.KeyTransactionID, tx.ID,
		logging.KeyDuration, time.Since(start).Milliseconds())
	return tx, nil
}

// EditTransaction replaces an existing transaction. The snapshot keeps its
// position in the list.
func (s *Store) EditTransaction(ctx context.Context, tx model.Transaction) error {
	ctx = logging.EnsureActionID(ctx)
	if err := s.ready(); err != nil {
		return err
	}
	tx.ApplyDefaults(time.Time{})
	if err := validate.Transaction(tx); err != nil {
		return err
	}

	unlock := s.locks.Lock(lockTx + tx.ID)
	defer unlock()

	var found bool
	s.view(func(st State) { _, found = st.Transaction(tx.ID) })
	if !found {
		return fmt.Errorf("%w: transaction %s", errors.ErrNotFound, tx.ID)
	}

	if err := s.repo.UpsertTransaction(ctx, tx); err != nil {
		return err
	}
	s.commit(PutTransaction{Transaction: tx})

	logging.FromContext(ctx).Debug("transaction edited", logging.KeyTransactionID, tx.ID)
	return nil
}

// DeleteTransaction removes a transaction. Deleting an unknown id succeeds.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	ctx = logging.EnsureActionID(ctx)
	if err := s.ready(); err != nil {
		return err
	}
	if err := validate.ID(id); err != nil {
		return err
	}

	unlock := s.locks.Lock(lockTx + id)
	defer unlock()

	if err := s.repo.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.commit(DropTransaction{ID: id})

	logging.FromContext(ctx).Debug("transaction deleted", logging.KeyTransactionID, id)
	return nil
}

// ============================================================================
// Settings
// ============================================================================

// UpdateUser merges patch into the profile. Empty fields keep their value.
func (s *Store) UpdateUser(ctx context.Context, patch model.User) (model.User, error) {
	ctx = logging.EnsureActionID(ctx)
	if err := s.ready(); err != nil {
		return model.User{}, err
	}
	patch.Name = strings.TrimSpace(patch.Name)
	if err := validate.UserName(patch.Name); err != nil {
		return model.User{}, err
	}

	unlock := s.locks.Lock(lockSetting + model.SettingUser)
	defer unlock()

	var user model.User
	s.view(func(st State) { user = st.User.Merge(patch) })

	raw, err := json.Marshal(user)
	if err != nil {
		return model.User{}, errors.NewSystemErrorWithOp("state.update_user", "failed to encode user", err)
	}
	if err := s.repo.SetSetting(ctx, model.SettingUser, string(raw)); err != nil {
		return model.User{}, err
	}
	s.commit(SetUser{User: user})

	logging.FromContext(ctx).Debug("user updated", logging.KeySettingKey, model.SettingUser)
	return user, nil
}

// ChangeCurrency stores a new display currency code.
func (s *Store) ChangeCurrency(ctx context.Context, code string) error {
	ctx = logging.EnsureActionID(ctx)
	if err := s.ready(); err != nil {
		return err
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := validate.Currency(code); err != nil {
		return err
	}

	unlock := s.locks.Lock(lockSetting + model.SettingCurrency)
	defer unlock()

	if err := s.repo.SetSetting(ctx, model.SettingCurrency, code); err != nil {
		return err
	}
	s.commit(SetCurrency{Currency: code})

	logging.FromContext(ctx).Debug("currency changed",
		logging.KeySettingKey, model.SettingCurrency, "currency", code)
	return nil
}

// ToggleTheme flips between the variant's two themes and returns the new one.
func (s *Store) ToggleTheme(ctx context.Context) (string, error) {
	ctx = logging.EnsureActionID(ctx)
	if err := s.ready(); err != nil {
		return "", err
	}

	unlock := s.locks.Lock(lockSetting + model.SettingTheme)
	defer unlock()

	var next string
	s.view(func(st State) { next = s.variant.ToggleTheme(st.Theme) })

	if err := s.repo.SetSetting(ctx, model.SettingTheme, next); err != nil {
		return "", err
	}
	s.commit(SetTheme{Theme: next})

	logging.FromContext(ctx).Debug("theme toggled",
		logging.KeySettingKey, model.SettingTheme, "theme", next)
	return next, nil
}

// ============================================================================
// Notes
// ============================================================================

// UpdateNote replaces a month's notes. A blank value deletes the month.
func (s *Store) UpdateNote(ctx context.Context, monthKey string, value model.NoteValue) error {
	ctx = logging.EnsureActionID(ctx)
	if err := s.ready(); err != nil {
		return err
	}
	if err := validateNote(monthKey, value); err != nil {
		return err
	}

	unlock := s.locks.Lock(lockNote + monthKey)
	defer unlock()

	return s.writeNote(ctx, monthKey, value)
}

// AddNoteItem appends one item to a month's notes. Free text already stored
// for the month is kept as the first item.
func (s *Store) AddNoteItem(ctx context.Context, monthKey, text string) (model.NoteItem, error) {
	ctx = logging.EnsureActionID(ctx)
	if err := s.ready(); err != nil {
		return model.NoteItem{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return model.NoteItem{}, errors.NewUserError("Note is empty", "Write some text for the note")
	}
	item := model.NewNoteItem(text, s.clock.Now())
	if err := validateNote(monthKey, model.ItemsNote([]model.NoteItem{item})); err != nil {
		return model.NoteItem{}, err
	}

	unlock := s.locks.Lock(lockNote + monthKey)
	defer unlock()

	items := append(s.noteItems(monthKey), item)
	if err := s.writeNote(ctx, monthKey, model.ItemsNote(items)); err != nil {
		return model.NoteItem{}, err
	}
	return item, nil
}

// RemoveNoteItem deletes one item from a month's notes.
func (s *Store) RemoveNoteItem(ctx context.Context, monthKey, itemID string) error {
	ctx = logging.EnsureActionID(ctx)
	if err := s.ready(); err != nil {
		return err
	}
	if err := validate.MonthKey(monthKey); err != nil {
		return err
	}

	unlock := s.locks.Lock(lockNote + monthKey)
	defer unlock()

	items := s.noteItems(monthKey)
	kept := items[:0]
	for _, it := range items {
		if it.ID != itemID {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(items) {
		return fmt.Errorf("%w: note %s in %s", errors.ErrNotFound, itemID, monthKey)
	}
	return s.writeNote(ctx, monthKey, model.ItemsNote(kept))
}

func (s *Store) noteItems(monthKey string) []model.NoteItem {
	var items []model.NoteItem
	s.view(func(st State) { items = cloneSlice(st.Notes[monthKey]) })
	return items
}

// writeNote is called with the month's lock held.
func (s *Store) writeNote(ctx context.Context, monthKey string, value model.NoteValue) error {
	var err error
	if value.IsBlank() {
		err = s.repo.DeleteNote(ctx, monthKey)
	} else {
		err = s.repo.UpsertNote(ctx, monthKey, value)
	}
	if err != nil {
		return err
	}
	s.commit(SetNote{MonthKey: monthKey, Items: value.Normalize(monthKey)})

	logging.FromContext(ctx).Debug("note updated", logging.KeyMonthKey, monthKey)
	return nil
}

func validateNote(monthKey string, value model.NoteValue) error {
	if err := validate.MonthKey(monthKey); err != nil {
		return err
	}
	if !value.IsItems() {
		return validate.Note(value.Text())
	}
	for _, it := range value.Items() {
		if err := validate.Note(it.Text); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
// Notifications
// ============================================================================

// AddNotification stores a new reminder and arms it when enabled.
func (s *Store) AddNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if err := s.putNotification(ctx, n, false); err != nil {
		return model.Notification{}, err
	}
	n.ApplyDefaults()
	return n, nil
}

// EditNotification replaces an existing reminder and re-runs its schedule.
func (s *Store) EditNotification(ctx context.Context, n model.Notification) error {
	return s.putNotification(ctx, n, true)
}

func (s *Store) putNotification(ctx context.Context, n model.Notification, mustExist bool) error {
	ctx = logging.EnsureActionID(ctx)
	if err := s.ready(); err != nil {
		return err
	}
	n.ApplyDefaults()
	if err := validate.Notification(n); err != nil {
		return err
	}
	logger := logging.FromContext(ctx).With(logging.KeyNotificationID, n.ID)

	unlock := s.locks.Lock(lockNotification + n.ID)
	defer unlock()

	if mustExist {
		var found bool
		s.view(func(st State) { _, found = st.Notification(n.ID) })
		if !found {
			return fmt.Errorf("%w: notification %s", errors.ErrNotFound, n.ID)
		}
	}

	if n.Enabled && s.permission != nil {
		if err := s.permission.RequestPermission(ctx); err != nil {
			logger.Warn("notification permission not granted", logging.KeyError, err)
		}
	}

	if err := s.repo.UpsertNotification(ctx, n); err != nil {
		return err
	}
	// Timers change before subscribers hear about the new snapshot.
	if err := s.sched.ScheduleOne(ctx, n); err != nil {
		logger.Warn("reminder not scheduled", logging.KeyError, err)
	}
	s.commit(PutNotification{Notification: n})
	logger.Debug("notification saved", "enabled", n.Enabled)
	return nil
}

// RemoveNotification deletes a reminder and disarms its timer.
func (s *Store) RemoveNotification(ctx context.Context, id string) error {
	ctx = logging.EnsureActionID(ctx)
	if err := s.ready(); err != nil {
		return err
	}
	if err := validate.ID(id); err != nil {
		return err
	}

	unlock := s.locks.Lock(lockNotification + id)
	defer unlock()

	if err := s.repo.DeleteNotification(ctx, id); err != nil {
		return err
	}
	s.sched.Cancel(ctx, id)
	s.commit(DropNotification{ID: id})

	logging.FromContext(ctx).Debug("notification removed", logging.KeyNotificationID, id)
	return nil
}
