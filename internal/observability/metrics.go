package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service-level prometheus counters.
type Metrics struct {
	ShortensTotal  prometheus.Counter
	RedirectsTotal prometheus.Counter
	PurgedTotal    prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates the counters on a private registry so tests can
// build isolated instances.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		ShortensTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "urlmint_shortens_total",
			Help: "Number of successfully created mappings.",
		}),
		RedirectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "urlmint_redirects_total",
			Help: "Number of successful redirects.",
		}),
		PurgedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "urlmint_purged_total",
			Help: "Number of expired mappings removed by cleanup or sweep.",
		}),
		registry: reg,
	}
	reg.MustRegister(m.ShortensTotal, m.RedirectsTotal, m.PurgedTotal)
	return m
}

// Handler exposes the registry for the /metrics route.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
