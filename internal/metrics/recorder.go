package metrics

import "time"

// Recorder defines observability hooks for the work order engine. All
// methods must be cheap and safe to call from the scheduler loop.
type Recorder interface {
	ObserveJobDuration(kind string, d time.Duration)
	IncJobOutcome(kind, outcome string) // outcome: succeeded|failed|canceled|dropped
	IncJobRetry(kind string)
	SetQueueDepth(n int)
	SetActiveTimers(n int)
	IncTimerExpired()
	ObserveRefresh(d time.Duration, success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveJobDuration(string, time.Duration) {}
func (NoopRecorder) IncJobOutcome(string, string)             {}
func (NoopRecorder) IncJobRetry(string)                       {}
func (NoopRecorder) SetQueueDepth(int)                        {}
func (NoopRecorder) SetActiveTimers(int)                      {}
func (NoopRecorder) IncTimerExpired()                         {}
func (NoopRecorder) ObserveRefresh(time.Duration, bool)       {}
