package api

import (
	"sync"
	"time"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const (
	AlertLoginFailureSpike AlertType = "login_failure_spike"
	AlertBulkWipe          AlertType = "bulk_wipe"
)

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

// slidingCounter raises an alert when threshold events land within window.
type slidingCounter struct {
	events    []time.Time
	window    time.Duration
	threshold int
}

// add records an event at now and reports the count if the threshold was
// reached, resetting the window so one spike alerts once.
func (c *slidingCounter) add(now time.Time) (int, bool) {
	c.events = append(c.events, now)
	c.events = trimWindow(c.events, now, c.window)
	if len(c.events) < c.threshold {
		return 0, false
	}
	n := len(c.events)
	c.events = c.events[:0]
	return n, true
}

// metricsCollector tracks sliding window counters for anomaly detection.
type metricsCollector struct {
	mu sync.Mutex

	loginFailures slidingCounter
	wipes         slidingCounter

	now     func() time.Time
	alertFn AlertFunc
}

const (
	defaultLoginFailureWindow    = 1 * time.Minute
	defaultLoginFailureThreshold = 50
	defaultWipeWindow            = 10 * time.Minute
	defaultWipeThreshold         = 5
)

func newMetricsCollector(alertFn AlertFunc) *metricsCollector {
	return &metricsCollector{
		loginFailures: slidingCounter{window: defaultLoginFailureWindow, threshold: defaultLoginFailureThreshold},
		wipes:         slidingCounter{window: defaultWipeWindow, threshold: defaultWipeThreshold},
		now:           time.Now,
		alertFn:       alertFn,
	}
}

// recordEvent inspects an audit event and updates the relevant counters.
func (m *metricsCollector) recordEvent(event AuditEvent) {
	if m == nil || m.alertFn == nil {
		return
	}

	m.mu.Lock()
	now := m.now()
	var alert *AlertEvent
	switch event {
	case AuditLoginFailure:
		if n, ok := m.loginFailures.add(now); ok {
			alert = &AlertEvent{
				Type:      AlertLoginFailureSpike,
				Message:   "login failure rate exceeds threshold",
				Count:     n,
				Threshold: m.loginFailures.threshold,
				Timestamp: now,
			}
		}
	case AuditEntriesDeleted:
		if n, ok := m.wipes.add(now); ok {
			alert = &AlertEvent{
				Type:      AlertBulkWipe,
				Message:   "bulk entry deletion rate exceeds threshold",
				Count:     n,
				Threshold: m.wipes.threshold,
				Timestamp: now,
			}
		}
	}
	m.mu.Unlock()

	if alert != nil {
		m.alertFn(*alert)
	}
}

// trimWindow removes entries older than (now - window) from the sorted slice.
func trimWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
