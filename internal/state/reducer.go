package state

import (
	"github.com/manav03panchal/fintrack/internal/model"
)

// Action is a state transition applied by Reduce.
type Action interface {
	isAction()
}

// Hydrate replaces the whole state; used once at boot.
type Hydrate struct{ State State }

// PutTransaction replaces the transaction with the same id, or prepends it.
type PutTransaction struct{ Transaction model.Transaction }

// DropTransaction removes a transaction by id.
type DropTransaction struct{ ID string }

// SetUser replaces the profile.
type SetUser struct{ User model.User }

// SetCurrency replaces the currency code.
type SetCurrency struct{ Currency string }

// SetTheme replaces the theme name.
type SetTheme struct{ Theme string }

// SetNote replaces a month's items. An empty list removes the month.
type SetNote struct {
	MonthKey string
	Items    []model.NoteItem
}

// PutNotification replaces the reminder with the same id, or appends it.
type PutNotification struct{ Notification model.Notification }

// DropNotification removes a reminder by id.
type DropNotification struct{ ID string }

func (Hydrate) isAction()          {}
func (PutTransaction) isAction()   {}
func (DropTransaction) isAction()  {}
func (SetUser) isAction()          {}
func (SetCurrency) isAction()      {}
func (SetTheme) isAction()         {}
func (SetNote) isAction()          {}
func (PutNotification) isAction()  {}
func (DropNotification) isAction() {}

// Reduce returns the state after applying a. It never modifies s: every
// changed collection is copied, unchanged ones are shared.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case Hydrate:
		return a.State.Clone()

	case PutTransaction:
		s.Transactions = upsert(s.Transactions, a.Transaction,
			func(t model.Transaction) string { return t.ID }, true)

	case DropTransaction:
		s.Transactions = remove(s.Transactions,
			func(t model.Transaction) bool { return t.ID == a.ID })

	case SetUser:
		s.User = a.User

	case SetCurrency:
		s.Currency = a.Currency

	case SetTheme:
		s.Theme = a.Theme

	case SetNote:
		notes := make(map[string][]model.NoteItem, len(s.Notes)+1)
		for k, v := range s.Notes {
			notes[k] = v
		}
		if len(a.Items) == 0 {
			delete(notes, a.MonthKey)
		} else {
			notes[a.MonthKey] = cloneSlice(a.Items)
		}
		s.Notes = notes

	case PutNotification:
		s.Notifications = upsert(s.Notifications, a.Notification,
			func(n model.Notification) string { return n.ID }, false)

	case DropNotification:
		s.Notifications = remove(s.Notifications,
			func(n model.Notification) bool { return n.ID == a.ID })
	}
	return s
}

// upsert replaces the element with v's key in place, or adds v at the
// front or back.
func upsert[T any](in []T, v T, key func(T) string, prepend bool) []T {
	k := key(v)
	out := make([]T, 0, len(in)+1)
	replaced := false
	for _, e := range in {
		if !replaced && key(e) == k {
			out = append(out, v)
			replaced = true
			continue
		}
		out = append(out, e)
	}
	if replaced {
		return out
	}
	if prepend {
		return append([]T{v}, out...)
	}
	return append(out, v)
}

func remove[T any](in []T, match func(T) bool) []T {
	out := make([]T, 0, len(in))
	for _, e := range in {
		if !match(e) {
			out = append(out, e)
		}
	}
	return out
}
