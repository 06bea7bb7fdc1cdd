// Package metric exposes prometheus metrics for content resolution and
// graph API traffic, fed by eventbus subscriptions.
package metric

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	eventbus "github.com/pagegraph/pagegraph/internal/eventbus"
	events "github.com/pagegraph/pagegraph/internal/events"
)

// Metrics holds the engine's prometheus collectors.
type Metrics struct {
	ResolvesTotal      *prometheus.CounterVec
	ResolveDuration    prometheus.Histogram
	GuillotineCalls    *prometheus.CounterVec
	GuillotineDuration prometheus.Histogram

	registry *prometheus.Registry
}

// NewMetrics creates and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ResolvesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pagegraph",
				Subsystem: "resolve",
				Name:      "total",
				Help:      "Total number of content resolutions by outcome code (ok or error code)",
			},
			[]string{"outcome"},
		),
		ResolveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "pagegraph",
				Subsystem: "resolve",
				Name:      "duration_seconds",
				Help:      "Duration of content resolutions",
			},
		),
		GuillotineCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pagegraph",
				Subsystem: "guillotine",
				Name:      "calls_total",
				Help:      "Total number of graph API calls by status",
			},
			[]string{"status"},
		),
		GuillotineDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "pagegraph",
				Subsystem: "guillotine",
				Name:      "call_duration_seconds",
				Help:      "Duration of graph API calls",
			},
		),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(m.ResolvesTotal, m.ResolveDuration, m.GuillotineCalls, m.GuillotineDuration)
	return m
}

// Register attaches the metrics to the eventbus.
func (m *Metrics) Register() {
	eventbus.Subscribe(func(_ context.Context, e events.ResolveFinish) {
		outcome := e.ErrorCode
		if outcome == "" {
			outcome = "ok"
		}
		m.ResolvesTotal.WithLabelValues(outcome).Inc()
		m.ResolveDuration.Observe(e.Duration.Seconds())
	})
	eventbus.Subscribe(func(_ context.Context, e events.GuillotineFinish) {
		status := "error"
		if e.Err == nil {
			status = "ok"
		}
		m.GuillotineCalls.WithLabelValues(status).Inc()
		m.GuillotineDuration.Observe(e.Duration.Seconds())
	})
}

// Handler serves the registry in prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
