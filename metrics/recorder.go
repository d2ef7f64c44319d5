// Package metrics defines observability hooks for jobs, sweeps and
// generation, with a Prometheus implementation and a no-op default.
package metrics

import "time"

// Recorder receives pipeline and scheduler measurements. Implementations
// must be safe for concurrent use.
type Recorder interface {
	ObserveJob(status string, d time.Duration)
	IncJobFailure(kind string)
	ObserveStageDuration(stage string, d time.Duration)
	ObserveGeneration(provider string, success bool, d time.Duration)
	ObserveSweep(schedules, dispatched int, d time.Duration)
	IncDispatch(result string) // queued|rejected
	SetQueueDepth(n int)
}

// Noop is a Recorder that does nothing (default when metrics are not configured).
type Noop struct{}

func (Noop) ObserveJob(string, time.Duration)              {}
func (Noop) IncJobFailure(string)                          {}
func (Noop) ObserveStageDuration(string, time.Duration)    {}
func (Noop) ObserveGeneration(string, bool, time.Duration) {}
func (Noop) ObserveSweep(int, int, time.Duration)          {}
func (Noop) IncDispatch(string)                            {}
func (Noop) SetQueueDepth(int)                             {}
