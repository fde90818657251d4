package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the render service.
type Metrics struct {
	Renders        *prometheus.CounterVec
	RenderDuration *prometheus.HistogramVec
	CacheLookups   *prometheus.CounterVec
	RateLimited    prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Renders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtestplot_renders_total",
				Help: "Figure renders by format and result",
			},
			[]string{"format", "result"},
		),
		RenderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backtestplot_render_duration_seconds",
				Help:    "Time spent rendering a figure",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"format"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtestplot_cache_lookups_total",
				Help: "Figure cache lookups by result (hit, miss, error)",
			},
			[]string{"result"},
		),
		RateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "backtestplot_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
		),
	}
	reg.MustRegister(m.Renders, m.RenderDuration, m.CacheLookups, m.RateLimited)
	return m
}
