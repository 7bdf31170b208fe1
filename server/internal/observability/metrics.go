package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects and aggregates counters for metadata operations.
type Metrics struct {
	mu sync.Mutex

	// Counters
	mergeTotal       atomic.Int64
	mergeFailed      atomic.Int64
	conflictRetries  atomic.Int64
	droppedArtifacts atomic.Int64

	// Duration samples for merge latency (bounded ring)
	durations    []time.Duration
	maxDurations int
}

// NewMetrics creates a new metrics collector.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		durations:    make([]time.Duration, 0, maxDurations),
		maxDurations: maxDurations,
	}
}

// Global metrics instance.
var globalMetrics = NewMetrics(1000)

// GlobalMetrics returns the global metrics instance.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

// RecordMerge records one merge attempt and its latency.
func (m *Metrics) RecordMerge(duration time.Duration, failed bool) {
	m.mergeTotal.Add(1)
	if failed {
		m.mergeFailed.Add(1)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
}

// RecordConflictRetry records one optimistic-concurrency retry.
func (m *Metrics) RecordConflictRetry() {
	m.conflictRetries.Add(1)
}

// RecordDroppedArtifact records one malformed artifact skipped during
// collection or scope resolution.
func (m *Metrics) RecordDroppedArtifact() {
	m.droppedArtifacts.Add(1)
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	MergeTotal       int64
	MergeFailed      int64
	ConflictRetries  int64
	DroppedArtifacts int64
	AvgMergeDuration time.Duration
}

// GetSnapshot returns the current counter values.
func (m *Metrics) GetSnapshot() Snapshot {
	snap := Snapshot{
		MergeTotal:       m.mergeTotal.Load(),
		MergeFailed:      m.mergeFailed.Load(),
		ConflictRetries:  m.conflictRetries.Load(),
		DroppedArtifacts: m.droppedArtifacts.Load(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.durations) > 0 {
		var total time.Duration
		for _, d := range m.durations {
			total += d
		}
		snap.AvgMergeDuration = total / time.Duration(len(m.durations))
	}
	return snap
}
