package metrics

import "testing"

// Compile-time interface checks.
var (
	_ Recorder = NoopRecorder{}
	_ Recorder = (*PrometheusRecorder)(nil)
)

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncJobOutcome("update_state", "succeeded")
	r.SetActiveTimers(4)
}
