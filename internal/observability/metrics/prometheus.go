// Package metrics provides Prometheus metrics for the inventory services.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	AllocationsTotal      prometheus.Counter
	InsufficientStock     prometheus.Counter
	MovementsRecorded     *prometheus.CounterVec
	ForecastsGenerated    *prometheus.CounterVec
	ForecastDuration      prometheus.Histogram
	TrackedProfiles       prometheus.Gauge
	KafkaMessagesProduced prometheus.Counter
	KafkaMessagesConsumed prometheus.Counter
	OutboxPending         prometheus.Gauge
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		AllocationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_allocations_total",
			Help: "Total stock allocations fulfilled",
		}),
		InsufficientStock: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_insufficient_stock_total",
			Help: "Total allocation requests rejected for insufficient stock",
		}),
		MovementsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_movements_recorded_total",
			Help: "Total stock movements recorded",
		}, []string{"type"}),
		ForecastsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inventory_forecasts_generated_total",
			Help: "Total demand forecasts generated",
		}, []string{"risk_level"}),
		ForecastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "inventory_forecast_duration_seconds",
			Help:    "Demand forecast generation duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		TrackedProfiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inventory_tracked_profiles",
			Help: "Drug profiles currently holding stock",
		}),
		KafkaMessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_produced_total",
			Help: "Total Kafka messages produced",
		}),
		KafkaMessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_consumed_total",
			Help: "Total Kafka messages consumed",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	prometheus.MustRegister(
		m.AllocationsTotal,
		m.InsufficientStock,
		m.MovementsRecorded,
		m.ForecastsGenerated,
		m.ForecastDuration,
		m.TrackedProfiles,
		m.KafkaMessagesProduced,
		m.KafkaMessagesConsumed,
		m.OutboxPending,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
