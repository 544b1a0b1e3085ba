package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GenerationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_generation_requests_total",
			Help: "Generation calls by provider and outcome.",
		},
		[]string{"provider", "status"}, // status: success, generation_error, network_error
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "template_generation_duration_seconds",
			Help:    "Latency of generation calls.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"provider"},
	)

	CartMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_mutations_total",
			Help: "Cart mutations by operation and outcome.",
		},
		[]string{"op", "status"},
	)

	Checkouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkouts_total",
			Help: "Checkout attempts by gateway and outcome.",
		},
		[]string{"gateway", "outcome"}, // outcome: completed, redirect, failed
	)

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flow_active_sessions",
		Help: "Sessions currently held in memory.",
	})
)
