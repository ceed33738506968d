package daemon

import (
	"runtime"
	"sort"
	"sync"
	"time"
)

// Health states.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus represents the current health state of the daemon.
type HealthStatus struct {
	Status         string        `json:"status"`
	UptimeSeconds  int64         `json:"uptime_seconds"`
	MemoryMB       float64       `json:"memory_mb"`
	ArmedReminders int           `json:"armed_reminders"`
	PendingRetries int           `json:"pending_retries"`
	LastCheck      time.Time     `json:"last_check"`
	Version        string        `json:"version,omitempty"`
	Goroutines     int           `json:"goroutines"`
	Checks         []CheckResult `json:"checks,omitempty"`
}

// CheckResult represents the result of a single health check.
type CheckResult struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// HealthChecker provides health status for the daemon.
type HealthChecker struct {
	mu           sync.RWMutex
	startTime    time.Time
	armed        int
	retries      int
	version      string
	customChecks map[string]func() error
}

// NewHealthChecker creates a new health checker.
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		startTime:    time.Now(),
		version:      version,
		customChecks: make(map[string]func() error),
	}
}

// Check runs every registered check and returns the status.
func (h *HealthChecker) Check() *HealthStatus {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	h.mu.RLock()
	names := make([]string, 0, len(h.customChecks))
	for name := range h.customChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := &HealthStatus{
		Status:         StatusHealthy,
		UptimeSeconds:  int64(time.Since(h.startTime).Seconds()),
		MemoryMB:       float64(memStats.Alloc) / 1024 / 1024,
		ArmedReminders: h.armed,
		PendingRetries: h.retries,
		LastCheck:      time.Now(),
		Version:        h.version,
		Goroutines:     runtime.NumGoroutine(),
	}
	for _, name := range names {
		result := CheckResult{Name: name, Healthy: true}
		if err := h.customChecks[name](); err != nil {
			result.Healthy = false
			result.Error = err.Error()
			status.Status = StatusUnhealthy
		}
		status.Checks = append(status.Checks, result)
	}
	h.mu.RUnlock()

	return status
}

// SetCounts updates the armed reminder and pending retry counts.
func (h *HealthChecker) SetCounts(armed, retries int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.armed = armed
	h.retries = retries
}

// AddCheck adds a custom health check function.
func (h *HealthChecker) AddCheck(name string, check func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.customChecks[name] = check
}

// RemoveCheck removes a custom health check.
func (h *HealthChecker) RemoveCheck(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.customChecks, name)
}

// Uptime returns how long the daemon has been running.
func (h *HealthChecker) Uptime() time.Duration {
	return time.Since(h.startTime)
}

// IsHealthy returns true if every check passes.
func (h *HealthChecker) IsHealthy() bool {
	return h.Check().Status == StatusHealthy
}
