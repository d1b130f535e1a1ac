package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var (
	// Latency buckets in milliseconds
	latencyBuckets = []float64{
		5, 10, 25,
		50, 100, 250,
		500, 1000, 2500,
		5000, 10000,
	}

	InferenceTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivermonitor_inference_requests_total",
			Help: "Frames processed by the inference pipeline",
		},
		[]string{"status"}, // ok, invalid_frame, model_error
	)

	ModelLatency = promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drivermonitor_model_latency_ms",
			Help:    "Model forward pass latency in milliseconds",
			Buckets: latencyBuckets,
		},
		[]string{"model"},
	)

	BehaviorFlags = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivermonitor_behavior_flags_total",
			Help: "Behaviors reported as present, by level",
		},
		[]string{"behavior", "level"},
	)

	DrowsinessFallbacks = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivermonitor_drowsiness_fallbacks_total",
			Help: "Drowsiness assessments that degraded to No",
		},
		[]string{"strategy", "reason"}, // reason: error, panic, class_missing
	)

	ObservationsDropped = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "drivermonitor_observations_dropped_total",
			Help: "Results not handed to the event workers because the queue was full",
		},
	)

	RelayTotal = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivermonitor_gateway_relay_total",
			Help: "Frames relayed by the gateway to the model server",
		},
		[]string{"status"},
	)
)

func init() {
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// ObserveLatency records the time elapsed since start for model.
func ObserveLatency(model string, start time.Time) {
	ModelLatency.WithLabelValues(model).Observe(float64(time.Since(start).Milliseconds()))
}

// Handler exposes the registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
