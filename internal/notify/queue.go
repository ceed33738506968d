package notify

import (
	"context"
	"sync"
	"time"

	"github.com/manav03panchal/fintrack/internal/logging"
)

// Defaults for the background retry queue.
const (
	DefaultQueueInterval = 30 * time.Second
)

// DefaultBackoff is the wait before each queued retry.
var DefaultBackoff = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
}

// QueuedDelivery is a webhook payload waiting to be re-sent.
type QueuedDelivery struct {
	ReminderID  string    `json:"reminder_id"`
	WebhookName string    `json:"webhook_name"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
	NextRetry   time.Time `json:"next_retry"`
	Attempts    int       `json:"attempts"`
	MaxRetries  int       `json:"max_retries"`
	LastError   string    `json:"last_error,omitempty"`
}

// RetryQueue re-sends webhook deliveries that failed with a retryable error.
// It only lives as long as the process; a reminder that never gets through
// is logged and dropped.
type RetryQueue struct {
	mu       sync.RWMutex
	queue    []*QueuedDelivery
	client   *HTTPClient
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
	interval time.Duration
	backoff  []time.Duration
	now      func() time.Time

	totalQueued int
	totalSent   int
	totalFailed int
}

// NewRetryQueue creates a retry queue. A zero interval or empty backoff
// selects the defaults.
func NewRetryQueue(client *HTTPClient, interval time.Duration, backoff []time.Duration) *RetryQueue {
	if interval <= 0 {
		interval = DefaultQueueInterval
	}
	if len(backoff) == 0 {
		backoff = DefaultBackoff
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RetryQueue{
		client:   client,
		ctx:      ctx,
		cancel:   cancel,
		interval: interval,
		backoff:  backoff,
		now:      time.Now,
	}
}

// Start begins processing the queue in the background.
func (q *RetryQueue) Start() {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()

	q.wg.Add(1)
	go q.processLoop()
}

// Stop stops the background processor and waits for it to exit.
func (q *RetryQueue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
}

// Enqueue adds a failed delivery to the queue.
func (q *RetryQueue) Enqueue(reminderID, webhookName, url, contentType string, body []byte, maxRetries int, cause error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	d := &QueuedDelivery{
		ReminderID:  reminderID,
		WebhookName: webhookName,
		URL:         url,
		ContentType: contentType,
		Body:        body,
		CreatedAt:   now,
		NextRetry:   now.Add(q.backoffFor(0)),
		MaxRetries:  maxRetries,
	}
	if cause != nil {
		d.LastError = cause.Error()
	}

	q.queue = append(q.queue, d)
	q.totalQueued++

	logging.Component("notify").Info("delivery queued for retry",
		logging.KeyWebhook, webhookName,
		logging.KeyNotificationID, reminderID,
		"queue_size", len(q.queue),
		logging.KeyError, cause)
}

func (q *RetryQueue) processLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.ProcessDue()
		}
	}
}

// ProcessDue attempts every delivery whose retry time has come.
func (q *RetryQueue) ProcessDue() {
	q.mu.Lock()
	now := q.now()

	var ready, remaining []*QueuedDelivery
	for _, d := range q.queue {
		if !d.NextRetry.After(now) {
			ready = append(ready, d)
		} else {
			remaining = append(remaining, d)
		}
	}
	q.queue = remaining
	q.mu.Unlock()

	for _, d := range ready {
		q.process(d)
	}
}

func (q *RetryQueue) process(d *QueuedDelivery) {
	log := logging.Component("notify")
	d.Attempts++

	log.Debug("retrying delivery",
		logging.KeyWebhook, d.WebhookName,
		"attempt", d.Attempts,
		"max_retries", d.MaxRetries)

	result := q.client.Send(q.ctx, d.URL, d.ContentType, d.Body)
	if result.Error == nil {
		q.mu.Lock()
		q.totalSent++
		q.mu.Unlock()

		log.Info("queued delivery sent",
			logging.KeyWebhook, d.WebhookName,
			"attempts", d.Attempts,
			logging.KeyDuration, result.Duration.Milliseconds())
		return
	}

	d.LastError = result.Error.Error()

	if d.Attempts >= d.MaxRetries || !result.Retryable() {
		q.mu.Lock()
		q.totalFailed++
		q.mu.Unlock()

		log.Warn("delivery dropped",
			logging.KeyWebhook, d.WebhookName,
			logging.KeyNotificationID, d.ReminderID,
			"attempts", d.Attempts,
			logging.KeyError, result.Error)
		return
	}

	d.NextRetry = q.now().Add(q.backoffFor(d.Attempts))

	q.mu.Lock()
	q.queue = append(q.queue, d)
	q.mu.Unlock()
}

func (q *RetryQueue) backoffFor(attempt int) time.Duration {
	if attempt >= len(q.backoff) {
		return q.backoff[len(q.backoff)-1]
	}
	return q.backoff[attempt]
}

// QueueStats holds retry queue counters.
type QueueStats struct {
	QueueSize   int `json:"queue_size"`
	TotalQueued int `json:"total_queued"`
	TotalSent   int `json:"total_sent"`
	TotalFailed int `json:"total_failed"`
}

// Stats returns current queue statistics.
func (q *RetryQueue) Stats() QueueStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return QueueStats{
		QueueSize:   len(q.queue),
		TotalQueued: q.totalQueued,
		TotalSent:   q.totalSent,
		TotalFailed: q.totalFailed,
	}
}

// Pending returns the number of queued deliveries.
func (q *RetryQueue) Pending() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.queue)
}

// Clear drops every queued delivery.
func (q *RetryQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = nil
}
