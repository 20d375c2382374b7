// Package metrics exposes optional prometheus instrumentation for the
// client. All methods are nil-safe so library code can instrument
// unconditionally and applications opt in by registering the collectors.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	requests       *prometheus.CounterVec
	refreshes      *prometheus.CounterVec
	forcedExpiries prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invoicing_client",
			Name:      "requests_total",
			Help:      "API requests by method and status class.",
		}, []string{"method", "status_class"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invoicing_client",
			Name:      "token_refreshes_total",
			Help:      "Token refresh attempts by outcome.",
		}, []string{"outcome"}),
		forcedExpiries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "invoicing_client",
			Name:      "forced_expiries_total",
			Help:      "Sessions torn down after a terminal 401.",
		}),
	}
}

// Collectors returns everything to register with a prometheus.Registerer.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.requests, m.refreshes, m.forcedExpiries}
}

func (m *Metrics) ObserveRequest(method string, statusCode int) {
	if m == nil {
		return
	}
	class := strconv.Itoa(statusCode/100) + "xx"
	if statusCode == 0 {
		class = "transport_error"
	}
	m.requests.WithLabelValues(method, class).Inc()
}

func (m *Metrics) ObserveRefresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveForcedExpiry() {
	if m == nil {
		return
	}
	m.forcedExpiries.Inc()
}
