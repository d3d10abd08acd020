// Package metrics records dispatched method calls for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess        = "success"
	OutcomeNotImplemented = "not_implemented"
	OutcomeInvalid        = "invalid"
)

// MethodUnknown is the method label for names outside the fixed method set,
// including envelopes that failed to decode.
const MethodUnknown = "unknown"

// Metrics holds the bridge's collectors on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	CallsTotal   *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
	Attached     prometheus.Gauge
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_bridge_calls_total",
				Help: "Method calls handled, by method and outcome (success, error code, not_implemented, invalid)",
			},
			[]string{"method", "outcome"},
		),
		CallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signal_bridge_call_duration_seconds",
				Help:    "Time spent answering a method call, platform query included",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"method"},
		),
		Attached: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "signal_bridge_attached",
				Help: "1 while the dispatcher is bound to its channel",
			},
		),
	}
}

// ObserveCall records one handled call.
func (m *Metrics) ObserveCall(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CallsTotal.WithLabelValues(method, outcome).Inc()
	m.CallDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// SetAttached flips the attachment gauge.
func (m *Metrics) SetAttached(attached bool) {
	if m == nil {
		return
	}
	if attached {
		m.Attached.Set(1)
		return
	}
	m.Attached.Set(0)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
