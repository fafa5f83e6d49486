// Package metrics wraps github.com/prometheus/client_golang, replacing a
// map[string]any metrics registry with real Prometheus instrumentation for
// the pool, timer, and RPC components.
//
// Author: aaron-michaux
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric this runtime exposes. Each Collector owns a
// private prometheus.Registry rather than the global DefaultRegisterer, so
// multiple Collectors (e.g. one per test) never collide on metric names.
type Collector struct {
	registry *prometheus.Registry

	tasksSubmitted prometheus.Counter
	tasksCompleted prometheus.Counter
	queueDepth     prometheus.Gauge

	timersArmed    prometheus.Counter
	timersFired    prometheus.Counter

	rpcCallsInFlight  prometheus.Gauge
	rpcCallsCompleted *prometheus.CounterVec
}

// NewCollector constructs a Collector and registers its metrics.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		tasksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zero_pool_tasks_submitted_total",
			Help: "Total number of tasks submitted to the pool.",
		}),
		tasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zero_pool_tasks_completed_total",
			Help: "Total number of tasks that finished executing.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zero_pool_queue_depth",
			Help: "Current number of tasks queued across all segments.",
		}),
		timersArmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zero_timer_armed_total",
			Help: "Total number of timers posted to the timer manager.",
		}),
		timersFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zero_timer_fired_total",
			Help: "Total number of timers that expired and ran.",
		}),
		rpcCallsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zero_rpc_calls_in_flight",
			Help: "Current number of outstanding outbound RPC calls.",
		}),
		rpcCallsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zero_rpc_calls_completed_total",
			Help: "Total number of RPC calls completed, by status code.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		c.tasksSubmitted,
		c.tasksCompleted,
		c.queueDepth,
		c.timersArmed,
		c.timersFired,
		c.rpcCallsInFlight,
		c.rpcCallsCompleted,
	)
	return c
}

// RecordTaskSubmitted increments the tasks-submitted counter.
func (c *Collector) RecordTaskSubmitted() { c.tasksSubmitted.Inc() }

// RecordTaskCompleted increments the tasks-completed counter.
func (c *Collector) RecordTaskCompleted() { c.tasksCompleted.Inc() }

// SetQueueDepth publishes the pool's current queue length.
func (c *Collector) SetQueueDepth(n int) { c.queueDepth.Set(float64(n)) }

// RecordTimerArmed increments the timers-armed counter.
func (c *Collector) RecordTimerArmed() { c.timersArmed.Inc() }

// RecordTimerFired increments the timers-fired counter.
func (c *Collector) RecordTimerFired() { c.timersFired.Inc() }

// RPCCallStarted increments the in-flight RPC call gauge. Callers must pair
// every call with RPCCallCompleted.
func (c *Collector) RPCCallStarted() { c.rpcCallsInFlight.Inc() }

// RPCCallCompleted decrements the in-flight gauge and records a completion
// under status's label.
func (c *Collector) RPCCallCompleted(status string) {
	c.rpcCallsInFlight.Dec()
	c.rpcCallsCompleted.WithLabelValues(status).Inc()
}

// Handler returns the http.Handler serving this collector's registry in
// Prometheus text exposition format, for mounting at e.g. "/metrics".
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
