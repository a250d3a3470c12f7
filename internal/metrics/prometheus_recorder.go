package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "wodesk"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	jobDuration   *prom.HistogramVec
	jobOutcomes   *prom.CounterVec
	jobRetries    *prom.CounterVec
	queueDepth    prom.Gauge
	activeTimers  prom.Gauge
	timersExpired prom.Counter
	refreshes     *prom.HistogramVec
}

// NewPrometheusRecorder constructs and registers the metrics on reg.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		jobDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of remote update jobs including retries",
			Buckets:   prom.DefBuckets,
		}, []string{"kind"}),
		jobOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "job_outcomes_total",
			Help:      "Remote update jobs by final outcome",
		}, []string{"kind", "outcome"}),
		jobRetries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "job_retries_total",
			Help:      "Retries of failed remote update jobs",
		}, []string{"kind"}),
		queueDepth: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatcher_queue_depth",
			Help:      "Jobs waiting for a dispatcher worker",
		}),
		activeTimers: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "active_timers",
			Help:      "Running work order countdowns",
		}),
		timersExpired: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "timers_expired_total",
			Help:      "Countdowns that ran out",
		}),
		refreshes: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of work order reloads from the remote system",
			Buckets:   prom.DefBuckets,
		}, []string{"result"}),
	}
	reg.MustRegister(pr.jobDuration, pr.jobOutcomes, pr.jobRetries, pr.queueDepth,
		pr.activeTimers, pr.timersExpired, pr.refreshes)
	return pr
}

func (p *PrometheusRecorder) ObserveJobDuration(kind string, d time.Duration) {
	if p == nil {
		return
	}
	p.jobDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncJobOutcome(kind, outcome string) {
	if p == nil {
		return
	}
	p.jobOutcomes.WithLabelValues(kind, outcome).Inc()
}

func (p *PrometheusRecorder) IncJobRetry(kind string) {
	if p == nil {
		return
	}
	p.jobRetries.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) SetQueueDepth(n int) {
	if p == nil {
		return
	}
	p.queueDepth.Set(float64(n))
}

func (p *PrometheusRecorder) SetActiveTimers(n int) {
	if p == nil {
		return
	}
	p.activeTimers.Set(float64(n))
}

func (p *PrometheusRecorder) IncTimerExpired() {
	if p == nil {
		return
	}
	p.timersExpired.Inc()
}

func (p *PrometheusRecorder) ObserveRefresh(d time.Duration, success bool) {
	if p == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.refreshes.WithLabelValues(res).Observe(d.Seconds())
}
