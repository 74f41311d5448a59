// Package observability provides the prometheus-backed metrics collector.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the application metrics port over a private
// prometheus registry so tests never collide on duplicate registration.
type Collector struct {
	registry *prometheus.Registry

	executionsTotal    *prometheus.CounterVec
	executionDuration  *prometheus.HistogramVec
	executionsInFlight *prometheus.GaugeVec
	memoDuration       *prometheus.HistogramVec
	channelCallsTotal  *prometheus.CounterVec
	channelDuration    *prometheus.HistogramVec
}

// NewCollector creates a collector with its own registry
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		executionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analyst_executions_total",
			Help: "Finished agent dispatch attempts by outcome",
		}, []string{"agent_type", "outcome"}),
		executionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "analyst_execution_duration_seconds",
			Help:    "Wall-clock duration of agent dispatch attempts",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"agent_type", "outcome"}),
		executionsInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "analyst_executions_in_flight",
			Help: "Agent dispatch attempts currently running",
		}, []string{"agent_type"}),
		memoDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "analyst_memo_generation_seconds",
			Help:    "Duration of memo synthesis by stage",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"stage"}),
		channelCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analyst_channel_calls_total",
			Help: "Outbound channel calls by outcome",
		}, []string{"channel", "outcome"}),
		channelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "analyst_channel_call_duration_seconds",
			Help:    "Duration of outbound channel calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"channel"}),
	}

	registry.MustRegister(
		c.executionsTotal,
		c.executionDuration,
		c.executionsInFlight,
		c.memoDuration,
		c.channelCallsTotal,
		c.channelDuration,
	)
	return c
}

// RecordExecution observes one finished dispatch attempt
func (c *Collector) RecordExecution(agentType, outcome string, seconds float64) {
	c.executionsTotal.WithLabelValues(agentType, outcome).Inc()
	c.executionDuration.WithLabelValues(agentType, outcome).Observe(seconds)
}

// ExecutionStarted increments the in-flight dispatch gauge
func (c *Collector) ExecutionStarted(agentType string) {
	c.executionsInFlight.WithLabelValues(agentType).Inc()
}

// ExecutionFinished decrements the in-flight dispatch gauge
func (c *Collector) ExecutionFinished(agentType string) {
	c.executionsInFlight.WithLabelValues(agentType).Dec()
}

// RecordMemoGenerated observes one completed memo synthesis
func (c *Collector) RecordMemoGenerated(stage string, seconds float64) {
	c.memoDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordChannelCall observes one outbound channel call
func (c *Collector) RecordChannelCall(channel, outcome string, seconds float64) {
	c.channelCallsTotal.WithLabelValues(channel, outcome).Inc()
	c.channelDuration.WithLabelValues(channel).Observe(seconds)
}

// Handler exposes the registry for scraping
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Nop is a metrics recorder that discards everything. Used in tests.
type Nop struct{}

// RecordExecution discards the observation
func (Nop) RecordExecution(string, string, float64) {}

// ExecutionStarted discards the observation
func (Nop) ExecutionStarted(string) {}

// ExecutionFinished discards the observation
func (Nop) ExecutionFinished(string) {}

// RecordMemoGenerated discards the observation
func (Nop) RecordMemoGenerated(string, float64) {}

// RecordChannelCall discards the observation
func (Nop) RecordChannelCall(string, string, float64) {}
