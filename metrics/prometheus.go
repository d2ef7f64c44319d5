package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "autoblog"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	jobDuration        *prom.HistogramVec
	jobFailures        *prom.CounterVec
	stageDuration      *prom.HistogramVec
	generationDuration *prom.HistogramVec
	sweepDuration      prom.Histogram
	sweepSchedules     prom.Counter
	sweepDispatched    prom.Counter
	dispatches         *prom.CounterVec
	queueDepth         prom.Gauge
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder constructs and registers metrics on reg (a fresh
// registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		jobDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of job runs by final status",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"status"}),
		jobFailures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "job_failures_total",
			Help:      "Failed jobs by error kind",
		}, []string{"kind"}),
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual job stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		generationDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "AI generation latency by provider and result",
			Buckets:   []float64{1, 5, 10, 20, 40, 60, 90, 120},
		}, []string{"provider", "result"}),
		sweepDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of due-schedule sweeps",
			Buckets:   prom.DefBuckets,
		}),
		sweepSchedules: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_schedules_total",
			Help:      "Due schedules processed by sweeps",
		}),
		sweepDispatched: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_jobs_dispatched_total",
			Help:      "Jobs dispatched by sweeps",
		}),
		dispatches: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Async dispatch attempts by result",
		}, []string{"result"}),
		queueDepth: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Jobs waiting for a worker",
		}),
	}
	reg.MustRegister(pr.jobDuration, pr.jobFailures, pr.stageDuration, pr.generationDuration,
		pr.sweepDuration, pr.sweepSchedules, pr.sweepDispatched, pr.dispatches, pr.queueDepth)
	return pr
}

func (p *PrometheusRecorder) ObserveJob(status string, d time.Duration) {
	p.jobDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncJobFailure(kind string) {
	p.jobFailures.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveGeneration(provider string, success bool, d time.Duration) {
	res := "failed"
	if success {
		res = "success"
	}
	p.generationDuration.WithLabelValues(provider, res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveSweep(schedules, dispatched int, d time.Duration) {
	p.sweepDuration.Observe(d.Seconds())
	p.sweepSchedules.Add(float64(schedules))
	p.sweepDispatched.Add(float64(dispatched))
}

func (p *PrometheusRecorder) IncDispatch(result string) {
	p.dispatches.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) SetQueueDepth(n int) {
	p.queueDepth.Set(float64(n))
}

// HTTPHandler returns an http.Handler that serves metrics for reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
