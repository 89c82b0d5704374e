package evaluator

import "time"

// Metrics defines the interface for recording evaluator metrics.
// Implementations must be safe for concurrent use. *metrics.Collector
// from pkg/metrics satisfies it.
type Metrics interface {
	RecordReceived()
	RecordPublished()
	RecordError()
	RecordProcessed(duration time.Duration)
	IncrementCustom(name string)
}

// NoOpMetrics is a no-op implementation of Metrics.
type NoOpMetrics struct{}

var _ Metrics = NoOpMetrics{}

func (NoOpMetrics) RecordReceived()               {}
func (NoOpMetrics) RecordPublished()              {}
func (NoOpMetrics) RecordError()                  {}
func (NoOpMetrics) RecordProcessed(time.Duration) {}
func (NoOpMetrics) IncrementCustom(string)        {}
