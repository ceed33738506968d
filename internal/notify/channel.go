// Package notify delivers fired reminders to the user: the terminal,
// chat webhooks, or several at once.
package notify

import (
	"context"
	"sync"

	"github.com/manav03panchal/fintrack/internal/errors"
	"github.com/manav03panchal/fintrack/internal/logging"
)

// Channel is a reminder delivery channel.
type Channel interface {
	// Name identifies the channel in logs.
	Name() string
	// Deliver surfaces the message to the user.
	Deliver(ctx context.Context, msg Message) error
}

// PermissionRequester is implemented by channels that need consent or
// credentials before they can deliver. A refusal is reported as
// errors.ErrPermissionDenied.
type PermissionRequester interface {
	RequestPermission(ctx context.Context) error
}

// Multi fans a message out to several channels concurrently.
type Multi struct {
	channels []Channel
}

// NewMulti combines channels. Nil entries are dropped.
func NewMulti(channels ...Channel) *Multi {
	m := &Multi{}
	for _, c := range channels {
		if c != nil {
			m.channels = append(m.channels, c)
		}
	}
	return m
}

// Name implements Channel.
func (m *Multi) Name() string { return "multi" }

// Len returns the number of channels.
func (m *Multi) Len() int { return len(m.channels) }

// Deliver sends to every channel and joins their errors.
func (m *Multi) Deliver(ctx context.Context, msg Message) error {
	var wg sync.WaitGroup
	errs := make([]error, len(m.channels))

	for i, c := range m.channels {
		wg.Add(1)
		go func(idx int, c Channel) {
			defer wg.Done()
			if err := c.Deliver(ctx, msg); err != nil {
				logging.Component("notify").Warn("delivery failed",
					"channel", c.Name(),
					logging.KeyNotificationID, msg.ReminderID,
					logging.KeyError, err)
				errs[idx] = err
			}
		}(i, c)
	}

	wg.Wait()
	return errors.Join(errs...)
}

// RequestPermission asks every channel that needs it. Permission is granted
// if at least one channel can deliver.
func (m *Multi) RequestPermission(ctx context.Context) error {
	var denied []error
	granted := 0
	for _, c := range m.channels {
		pr, ok := c.(PermissionRequester)
		if !ok {
			granted++
			continue
		}
		if err := pr.RequestPermission(ctx); err != nil {
			denied = append(denied, err)
			continue
		}
		granted++
	}
	if granted == 0 && len(denied) > 0 {
		return errors.Join(denied...)
	}
	return nil
}

// Discard drops every message.
type Discard struct{}

// Name implements Channel.
func (Discard) Name() string { return "discard" }

// Deliver implements Channel.
func (Discard) Deliver(context.Context, Message) error { return nil }
