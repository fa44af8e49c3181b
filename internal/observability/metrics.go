// ABOUTME: In-process counters for the tracking pipeline
// ABOUTME: Atomic counters with point-in-time snapshots for the stats endpoint

package observability

import (
	"fmt"
	"sync/atomic"
	"time"
)

// MetricsSnapshot contains a point-in-time snapshot of all counters.
type MetricsSnapshot struct {
	// Events dispatched to the tracking backend.
	EventsTracked int64 `json:"events_tracked"`

	// Requests whose tracking was suppressed by DNT.
	RequestsSuppressed int64 `json:"requests_suppressed"`

	// Profile syncs dispatched.
	ProfileSyncs int64 `json:"profile_syncs"`

	// Profile syncs elided because the payload was unchanged.
	ProfileDedupes int64 `json:"profile_dedupes"`

	// Backend dispatch failures (logged and swallowed).
	SinkErrors int64 `json:"sink_errors"`

	// Process uptime at snapshot time.
	Uptime time.Duration `json:"uptime"`

	// Timestamp of snapshot.
	Timestamp time.Time `json:"timestamp"`
}

// String returns a human-readable representation.
func (s *MetricsSnapshot) String() string {
	return fmt.Sprintf(
		"events=%d suppressed=%d profiles=%d (deduped=%d) sink_errors=%d uptime=%s",
		s.EventsTracked, s.RequestsSuppressed,
		s.ProfileSyncs, s.ProfileDedupes, s.SinkErrors,
		s.Uptime.Round(time.Second),
	)
}

// Metrics collects tracking pipeline counters. All methods are safe for
// concurrent use.
type Metrics struct {
	eventsTracked      atomic.Int64
	requestsSuppressed atomic.Int64
	profileSyncs       atomic.Int64
	profileDedupes     atomic.Int64
	sinkErrors         atomic.Int64
	started            time.Time
}

// NewMetrics creates a metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{started: time.Now()}
}

// EventTracked records one dispatched event.
func (m *Metrics) EventTracked() {
	m.eventsTracked.Add(1)
}

// RequestSuppressed records one request that opted out via DNT.
func (m *Metrics) RequestSuppressed() {
	m.requestsSuppressed.Add(1)
}

// ProfileSynced records one profile sync.
func (m *Metrics) ProfileSynced() {
	m.profileSyncs.Add(1)
}

// ProfileDeduped records one profile sync skipped by the dedupe gate.
func (m *Metrics) ProfileDeduped() {
	m.profileDedupes.Add(1)
}

// SinkError records one backend dispatch failure.
func (m *Metrics) SinkError() {
	m.sinkErrors.Add(1)
}

// Snapshot returns a point-in-time copy of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	now := time.Now()
	return MetricsSnapshot{
		EventsTracked:      m.eventsTracked.Load(),
		RequestsSuppressed: m.requestsSuppressed.Load(),
		ProfileSyncs:       m.profileSyncs.Load(),
		ProfileDedupes:     m.profileDedupes.Load(),
		SinkErrors:         m.sinkErrors.Load(),
		Uptime:             now.Sub(m.started),
		Timestamp:          now,
	}
}
