package vecdb

import (
	"sync/atomic"
	"time"
)

// MetricsCollector collects operational metrics from the database.
// Implementations must be safe for concurrent use.
type MetricsCollector interface {
	// RecordUpsert records an upsert operation and its duration.
	RecordUpsert(collection string, duration time.Duration)

	// RecordDelete records a delete operation and its duration.
	RecordDelete(collection string, duration time.Duration)

	// RecordSearch records a search operation, the candidates scanned and
	// the duration.
	RecordSearch(collection string, scanned int, duration time.Duration)

	// RecordWALAppend records a WAL append and its duration.
	RecordWALAppend(duration time.Duration)

	// RecordError records an operation error.
	RecordError(operation string)
}

// NoopMetricsCollector is a MetricsCollector that discards all metrics.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordUpsert(string, time.Duration)      {}
func (NoopMetricsCollector) RecordDelete(string, time.Duration)      {}
func (NoopMetricsCollector) RecordSearch(string, int, time.Duration) {}
func (NoopMetricsCollector) RecordWALAppend(time.Duration)           {}
func (NoopMetricsCollector) RecordError(string)                      {}

// BasicMetricsCollector counts operations with atomics. It is cheap enough
// to leave enabled in production.
type BasicMetricsCollector struct {
	upserts        atomic.Int64
	deletes        atomic.Int64
	searches       atomic.Int64
	scanned        atomic.Int64
	walAppends     atomic.Int64
	errors         atomic.Int64
	upsertNanos    atomic.Int64
	searchNanos    atomic.Int64
	walAppendNanos atomic.Int64
}

// NewBasicMetricsCollector creates a new BasicMetricsCollector.
func NewBasicMetricsCollector() *BasicMetricsCollector {
	return &BasicMetricsCollector{}
}

func (m *BasicMetricsCollector) RecordUpsert(_ string, d time.Duration) {
	m.upserts.Add(1)
	m.upsertNanos.Add(int64(d))
}

func (m *BasicMetricsCollector) RecordDelete(_ string, _ time.Duration) {
	m.deletes.Add(1)
}

func (m *BasicMetricsCollector) RecordSearch(_ string, scanned int, d time.Duration) {
	m.searches.Add(1)
	m.scanned.Add(int64(scanned))
	m.searchNanos.Add(int64(d))
}

func (m *BasicMetricsCollector) RecordWALAppend(d time.Duration) {
	m.walAppends.Add(1)
	m.walAppendNanos.Add(int64(d))
}

func (m *BasicMetricsCollector) RecordError(_ string) {
	m.errors.Add(1)
}

// Stats is a point-in-time snapshot of collected metrics.
type Stats struct {
	Upserts          int64
	Deletes          int64
	Searches         int64
	VectorsScanned   int64
	WALAppends       int64
	Errors           int64
	AvgUpsertLatency time.Duration
	AvgSearchLatency time.Duration
	AvgWALLatency    time.Duration
}

// GetStats returns a snapshot of the collected metrics.
func (m *BasicMetricsCollector) GetStats() Stats {
	s := Stats{
		Upserts:        m.upserts.Load(),
		Deletes:        m.deletes.Load(),
		Searches:       m.searches.Load(),
		VectorsScanned: m.scanned.Load(),
		WALAppends:     m.walAppends.Load(),
		Errors:         m.errors.Load(),
	}
	if s.Upserts > 0 {
		s.AvgUpsertLatency = time.Duration(m.upsertNanos.Load() / s.Upserts)
	}
	if s.Searches > 0 {
		s.AvgSearchLatency = time.Duration(m.searchNanos.Load() / s.Searches)
	}
	if s.WALAppends > 0 {
		s.AvgWALLatency = time.Duration(m.walAppendNanos.Load() / s.WALAppends)
	}
	return s
}
