// Package metrics provides the observability hooks for wodesk.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	d := dispatcher.New(queueSize, workers, exec)
//	d.SetRecorder(metrics.NewPrometheusRecorder(reg))
//
// The daemon wires a PrometheusRecorder and serves it with HTTPHandler on
// /metrics.
package metrics
