package mmapio

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordReserve is called after each space reservation.
	// allocated reports whether physical blocks were committed,
	// err is nil if successful.
	RecordReserve(length uint64, allocated bool, duration time.Duration, err error)

	// RecordCopy is called after each guarded copy.
	// n is the number of bytes requested, err is nil if successful.
	RecordCopy(n int, duration time.Duration, err error)

	// RecordSpaceFault is called when a guarded copy faulted on missing
	// backing store. Always paired with a RecordCopy carrying the error.
	RecordSpaceFault()

	// RecordFlush is called after each flush (msync) of dirty pages.
	RecordFlush(n int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordReserve(uint64, bool, time.Duration, error) {}
func (NoopMetricsCollector) RecordCopy(int, time.Duration, error)             {}
func (NoopMetricsCollector) RecordSpaceFault()                                {}
func (NoopMetricsCollector) RecordFlush(int, time.Duration, error)            {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ReserveCount     atomic.Int64
	ReserveFallbacks atomic.Int64
	ReserveErrors    atomic.Int64
	CopyCount        atomic.Int64
	CopyBytes        atomic.Int64
	CopyErrors       atomic.Int64
	SpaceFaults      atomic.Int64
	FlushCount       atomic.Int64
	FlushBytes       atomic.Int64
	FlushErrors      atomic.Int64
}

// RecordReserve implements MetricsCollector.
func (b *BasicMetricsCollector) RecordReserve(length uint64, allocated bool, duration time.Duration, err error) {
	b.ReserveCount.Add(1)
	if err != nil {
		b.ReserveErrors.Add(1)
		return
	}
	if !allocated {
		b.ReserveFallbacks.Add(1)
	}
}

// RecordCopy implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCopy(n int, duration time.Duration, err error) {
	b.CopyCount.Add(1)
	b.CopyBytes.Add(int64(n))
	if err != nil {
		b.CopyErrors.Add(1)
	}
}

// RecordSpaceFault implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSpaceFault() {
	b.SpaceFaults.Add(1)
}

// RecordFlush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlush(n int, duration time.Duration, err error) {
	b.FlushCount.Add(1)
	b.FlushBytes.Add(int64(n))
	if err != nil {
		b.FlushErrors.Add(1)
	}
}
