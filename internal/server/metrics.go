package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the Prometheus collectors for the lookup server.
type Metrics struct {
	Registry *prometheus.Registry

	Lookups        *prometheus.CounterVec   // labels: route={zip,fips}, outcome={found,not_found,invalid}
	LookupDuration *prometheus.HistogramVec // labels: route
	MappedZIPs     prometheus.Gauge
}

// NewMetrics creates the collectors on a fresh registry so several servers
// (and tests) can coexist in one process.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zipcounty",
			Name:      "lookups_total",
			Help:      "Lookups by route and outcome.",
		}, []string{"route", "outcome"}),
		LookupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "zipcounty",
			Name:      "lookup_duration_seconds",
			Help:      "Lookup handler latency in seconds.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"route"}),
		MappedZIPs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "zipcounty",
			Name:      "mapped_zips",
			Help:      "ZIP codes held in the served mapping.",
		}),
	}

	m.Registry.MustRegister(
		m.Lookups,
		m.LookupDuration,
		m.MappedZIPs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}
