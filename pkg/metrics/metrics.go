// Package metrics provides Prometheus instrumentation for SPipeline
// executions. A Collector owns the metric vectors and an Instrument step
// observes one execution from its first phase to its unwind.
package metrics

import (
	"net/http"
	"time"

	"github.com/Suhaibinator/SPipeline/pkg/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics for pipeline executions.
type Collector struct {
	registry *prometheus.Registry

	executionsStarted  *prometheus.CounterVec
	executionsFinished *prometheus.CounterVec
	executionsFailed   *prometheus.CounterVec
	executionDuration  *prometheus.HistogramVec
	stepDuration       *prometheus.HistogramVec
}

// NewCollector creates a Collector with its own Prometheus registry. The
// namespace prefixes every metric name.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		executionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_executions_started_total",
			Help:      "Number of pipeline executions started.",
		}, []string{"pipeline"}),
		executionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_executions_finished_total",
			Help:      "Number of pipeline executions that completed successfully.",
		}, []string{"pipeline"}),
		executionsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_executions_failed_total",
			Help:      "Number of pipeline executions that ended in failure.",
		}, []string{"pipeline"}),
		executionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_execution_duration_seconds",
			Help:      "Wall-clock duration of pipeline executions, including paused time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pipeline"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_phase_duration_seconds",
			Help:      "Duration from entering a phase to the end of the execution.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pipeline", "phase"}),
	}

	c.registry.MustRegister(
		c.executionsStarted,
		c.executionsFinished,
		c.executionsFailed,
		c.executionDuration,
		c.stepDuration,
	)
	return c
}

// Registry exposes the underlying Prometheus registry, e.g. for registering
// additional application metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler exposing the collected metrics in the
// Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Instrument returns a step that records one execution of the named
// pipeline: a started counter when the step runs, and a finished/failed
// counter plus the execution duration when the execution unwinds. Register
// it in the first phase of the pipeline.
func Instrument[S any](c *Collector, pipelineName string) pipeline.Step[S] {
	return func(ctx *pipeline.Context[S], subject S) error {
		start := time.Now()
		c.executionsStarted.WithLabelValues(pipelineName).Inc()

		ctx.OnFinish(func() {
			c.executionsFinished.WithLabelValues(pipelineName).Inc()
			c.executionDuration.WithLabelValues(pipelineName).Observe(time.Since(start).Seconds())
		})
		ctx.OnFail(func(error) {
			c.executionsFailed.WithLabelValues(pipelineName).Inc()
			c.executionDuration.WithLabelValues(pipelineName).Observe(time.Since(start).Seconds())
		})
		return nil
	}
}

// InstrumentPhase returns a step that records the time from entering the
// named phase to the end of the execution. Register it as the first step of
// the phase it measures.
func InstrumentPhase[S any](c *Collector, pipelineName string, phase pipeline.Phase) pipeline.Step[S] {
	return func(ctx *pipeline.Context[S], subject S) error {
		start := time.Now()
		observe := func() {
			c.stepDuration.WithLabelValues(pipelineName, string(phase)).Observe(time.Since(start).Seconds())
		}
		ctx.OnFinish(observe)
		ctx.OnFail(func(error) { observe() })
		return nil
	}
}
