// Package metrics exposes Prometheus collectors for the event pipeline.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oactree/jobmon/internal/dispatcher"
	"github.com/oactree/jobmon/internal/event"
	"github.com/oactree/jobmon/internal/jobs"
)

const namespace = "jobmon"

// Metrics holds the pipeline collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	dispatched   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	lookupMisses *prometheus.CounterVec
	jobStates    *prometheus.CounterVec
	logRecords   *prometheus.CounterVec
	queueDepth   prometheus.Gauge
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dispatched_total",
			Help:      "Events popped from the queue and dispatched, by kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent in dispatch callbacks, by kind.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}, []string{"kind"}),
		lookupMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_misses_total",
			Help:      "Events dropped because their instruction or variable was unknown.",
		}, []string{"kind"}),
		jobStates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_state_transitions_total",
			Help:      "Job state changes, by new state.",
		}, []string{"state"}),
		logRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_records_total",
			Help:      "Engine log records, by severity.",
		}, []string{"severity"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Undispatched events at the last observation.",
		}),
	}
	m.registry.MustRegister(
		m.dispatched, m.duration, m.lookupMisses, m.jobStates, m.logRecords, m.queueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding all collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware counts and times every dispatched event.
func (m *Metrics) Middleware() dispatcher.Middleware {
	return func(next dispatcher.Handler) dispatcher.Handler {
		return func(ctx context.Context, ev event.Event) {
			start := time.Now()
			next(ctx, ev)

			kind := ev.Kind().String()
			m.duration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
			m.dispatched.WithLabelValues(kind).Inc()

			switch e := ev.(type) {
			case event.JobStateChanged:
				m.jobStates.WithLabelValues(e.State.String()).Inc()
			case event.LogEvent:
				m.logRecords.WithLabelValues(e.Severity.String()).Inc()
			}
		}
	}
}

// Diagnostics decorates next so every lookup miss is counted.
func (m *Metrics) Diagnostics(next jobs.Diagnostics) jobs.Diagnostics {
	return jobs.DiagnosticsFunc(func(kind event.Kind, key string) {
		m.lookupMisses.WithLabelValues(kind.String()).Inc()
		if next != nil {
			next.LookupMiss(kind, key)
		}
	})
}

// ObserveQueue records the current queue depth.
func (m *Metrics) ObserveQueue(depth int) {
	m.queueDepth.Set(float64(depth))
}
