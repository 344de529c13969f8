// Package metrics defines the Prometheus collectors exported by the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "taleweaver"

var (
	CampaignsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "campaigns_created_total", Help: "Number of campaigns successfully created."},
	)
	Actions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "actions_total", Help: "Player actions by result."},
		[]string{"result"},
	)
	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Latency of completion provider calls.",
			Buckets:   []float64{0.05, 0.25, 0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"provider", "outcome"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	LiveSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "live_subscribers", Help: "Open live campaign feeds."},
	)
	TranscriptDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "transcript_dropped_total", Help: "Transcript entries dropped because the queue was full."},
	)
)

// Action results.
const (
	ResultOK            = "ok"
	ResultNotFound      = "not_found"
	ResultProviderError = "provider_error"
	ResultStoreError    = "store_error"
)

// RegisterCollectors registers every collector with reg.
func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(CampaignsCreated)
	reg.MustRegister(Actions)
	reg.MustRegister(GenerationDuration)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(LiveSubscribers)
	reg.MustRegister(TranscriptDropped)
}
