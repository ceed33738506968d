package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/manav03panchal/fintrack/internal/errors"
	"github.com/manav03panchal/fintrack/internal/logging"
)

// WebhookChannel posts reminders to a chat webhook.
type WebhookChannel struct {
	name      string
	url       string
	formatter Formatter
	client    *HTTPClient
	queue     *RetryQueue
	retries   int
}

// NewWebhookChannel creates a channel for one webhook target. The type
// selects the payload format.
func NewWebhookChannel(name, webhookType, rawURL string, client *HTTPClient) *WebhookChannel {
	if name == "" {
		name = webhookType
	}
	return &WebhookChannel{
		name:      name,
		url:       rawURL,
		formatter: GetFormatter(webhookType),
		client:    client,
	}
}

// WithRetryQueue hands retryable failures to q for later delivery.
func (w *WebhookChannel) WithRetryQueue(q *RetryQueue, maxRetries int) *WebhookChannel {
	w.queue = q
	w.retries = maxRetries
	return w
}

// Name implements Channel.
func (w *WebhookChannel) Name() string { return "webhook:" + w.name }

// Deliver implements Channel. A 401 or 403 response is reported as
// errors.ErrPermissionDenied.
func (w *WebhookChannel) Deliver(ctx context.Context, msg Message) error {
	body, err := w.formatter.Format(msg)
	if err != nil {
		return fmt.Errorf("format %s payload: %w", w.name, err)
	}

	result := w.client.Send(ctx, w.url, w.formatter.ContentType(), body)
	if result.Error == nil {
		logging.Component("notify").Debug("webhook delivered",
			logging.KeyWebhook, w.name,
			logging.KeyNotificationID, msg.ReminderID,
			logging.KeyStatus, result.StatusCode,
			logging.KeyDuration, result.Duration.Milliseconds())
		return nil
	}

	switch result.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: webhook %s returned HTTP %d", errors.ErrPermissionDenied, w.name, result.StatusCode)
	}

	if w.queue != nil && result.Retryable() {
		w.queue.Enqueue(msg.ReminderID, w.name, w.url, w.formatter.ContentType(), body, w.retries, result.Error)
	}
	return fmt.Errorf("webhook %s (%s): %w", w.name, logging.MaskURL(w.url), result.Error)
}

// RequestPermission checks that the target is a usable http(s) URL. No
// request is made.
func (w *WebhookChannel) RequestPermission(context.Context) error {
	u, err := url.Parse(w.url)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: webhook %s has no usable URL", errors.ErrPermissionDenied, w.name)
	}
	return nil
}
