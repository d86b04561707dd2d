package pagecache

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordNewPage is called after each allocation attempt. probes is the
	// number of shards tried, err is nil if an allocation succeeded.
	RecordNewPage(probes int, duration time.Duration, err error)

	// RecordFetch is called after each fetch. err is nil on success.
	RecordFetch(duration time.Duration, err error)

	// RecordUnpin is called after each unpin. ok is the shard's result.
	RecordUnpin(ok bool)

	// RecordFlush is called after each single-page flush.
	RecordFlush(duration time.Duration, ok bool)

	// RecordDelete is called after each delete.
	RecordDelete(ok bool)

	// RecordFlushAll is called after each pool-wide flush.
	RecordFlushAll(duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordNewPage(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordFetch(time.Duration, error)        {}
func (NoopMetricsCollector) RecordUnpin(bool)                        {}
func (NoopMetricsCollector) RecordFlush(time.Duration, bool)         {}
func (NoopMetricsCollector) RecordDelete(bool)                       {}
func (NoopMetricsCollector) RecordFlushAll(time.Duration)            {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	NewPageCount      atomic.Int64
	NewPageErrors     atomic.Int64
	NewPageProbes     atomic.Int64
	NewPageTotalNanos atomic.Int64
	FetchCount        atomic.Int64
	FetchErrors       atomic.Int64
	FetchTotalNanos   atomic.Int64
	UnpinCount        atomic.Int64
	UnpinMisses       atomic.Int64
	FlushCount        atomic.Int64
	FlushMisses       atomic.Int64
	DeleteCount       atomic.Int64
	DeleteMisses      atomic.Int64
	FlushAllCount     atomic.Int64
}

// RecordNewPage implements MetricsCollector.
func (b *BasicMetricsCollector) RecordNewPage(probes int, duration time.Duration, err error) {
	b.NewPageCount.Add(1)
	b.NewPageProbes.Add(int64(probes))
	b.NewPageTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.NewPageErrors.Add(1)
	}
}

// RecordFetch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFetch(duration time.Duration, err error) {
	b.FetchCount.Add(1)
	b.FetchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FetchErrors.Add(1)
	}
}

// RecordUnpin implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUnpin(ok bool) {
	b.UnpinCount.Add(1)
	if !ok {
		b.UnpinMisses.Add(1)
	}
}

// RecordFlush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlush(duration time.Duration, ok bool) {
	b.FlushCount.Add(1)
	if !ok {
		b.FlushMisses.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(ok bool) {
	b.DeleteCount.Add(1)
	if !ok {
		b.DeleteMisses.Add(1)
	}
}

// RecordFlushAll implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlushAll(time.Duration) {
	b.FlushAllCount.Add(1)
}
