package exchange

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks exchange-wide counters and gauges.
type Metrics struct {
	// Roster metrics
	FederatesJoined   prometheus.Counter
	FederatesResigned prometheus.Counter
	Federates         prometheus.Gauge

	// Sync point metrics
	PointsRegistered   prometheus.Counter
	PointsSynchronized prometheus.Counter
	PointsPending      prometheus.Gauge
	Achievements       prometheus.Counter

	// Protocol metrics
	ProtocolErrors prometheus.Counter
	Messages       prometheus.Counter
}

// NewMetrics creates and registers exchange metrics. A nil registry uses
// the default registerer; tests pass their own registry so repeated
// construction does not collide.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	return &Metrics{
		FederatesJoined: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "fedsync_exchange_federates_joined_total",
			Help: "Total number of federates that joined the federation",
		}),
		FederatesResigned: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "fedsync_exchange_federates_resigned_total",
			Help: "Total number of federates that resigned from the federation",
		}),
		Federates: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "fedsync_exchange_federates",
			Help: "Number of currently joined federates",
		}),
		PointsRegistered: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "fedsync_exchange_points_registered_total",
			Help: "Total number of sync points registered",
		}),
		PointsSynchronized: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "fedsync_exchange_points_synchronized_total",
			Help: "Total number of sync points confirmed by the whole federation",
		}),
		PointsPending: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "fedsync_exchange_points_pending",
			Help: "Number of announced sync points awaiting synchronization",
		}),
		Achievements: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "fedsync_exchange_achievements_total",
			Help: "Total number of per-federate achievements recorded",
		}),
		ProtocolErrors: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "fedsync_exchange_protocol_errors_total",
			Help: "Total number of protocol errors reported to federates",
		}),
		Messages: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "fedsync_exchange_messages_total",
			Help: "Total number of websocket messages received",
		}),
	}
}
