package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// refresh pipeline and the push channel.
type Metrics struct {
	RefreshCycles   prometheus.Counter
	RefreshSkipped  prometheus.Counter
	RefreshDuration prometheus.Histogram
	WardsUpdated    prometheus.Counter
	DispatcherUp    prometheus.Gauge

	// Aggregation source metrics.
	SourceFallbacks *prometheus.CounterVec // labels: from={predictor,weather,stored}, to={weather,stored,demo}
	PredictorCalls  *prometheus.CounterVec // labels: endpoint={predict,detail,health}, outcome={success,error}
	WeatherCache    *prometheus.CounterVec // labels: result={hit,miss,error}

	// Coordinate resolution by method.
	CoordinateResolutions *prometheus.CounterVec // labels: method={table,substring,zone,rejected}

	// Push channel and alerting.
	EventsPublished *prometheus.CounterVec // labels: topic
	BusReconnects   prometheus.Counter
	ActiveAlerts    prometheus.Gauge
	IncidentsFiled  *prometheus.CounterVec // labels: origin={citizen,simulated}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RefreshCycles,
		m.RefreshSkipped,
		m.RefreshDuration,
		m.WardsUpdated,
		m.DispatcherUp,
		m.SourceFallbacks,
		m.PredictorCalls,
		m.WeatherCache,
		m.CoordinateResolutions,
		m.EventsPublished,
		m.BusReconnects,
		m.ActiveAlerts,
		m.IncidentsFiled,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RefreshCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "refresh_cycles_total",
			Help:      "Completed ward refresh cycles.",
		}),
		RefreshSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "refresh_skipped_total",
			Help:      "Refresh triggers absorbed because a cycle was already in flight.",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_risk",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete aggregate-classify-publish cycle.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		WardsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "wards_updated_total",
			Help:      "Ward records written during refresh cycles.",
		}),
		DispatcherUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flood_risk",
			Name:      "dispatcher_up",
			Help:      "1 when the update dispatcher is active, 0 when shut down.",
		}),
		SourceFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "source_fallbacks_total",
			Help:      "Data source fallbacks taken during aggregation.",
		}, []string{"from", "to"}),
		PredictorCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "predictor_calls_total",
			Help:      "External prediction service calls by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		WeatherCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "weather_cache_total",
			Help:      "Grid-cell weather cache lookups by result.",
		}, []string{"result"}),
		CoordinateResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "coordinate_resolutions_total",
			Help:      "Ward coordinate resolutions by method.",
		}, []string{"method"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "events_published_total",
			Help:      "Push channel events published by topic.",
		}, []string{"topic"}),
		BusReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "bus_reconnects_total",
			Help:      "Push channel reconnections that forced a full refresh.",
		}),
		ActiveAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flood_risk",
			Name:      "active_alerts",
			Help:      "Alerts in the current ranked feed.",
		}),
		IncidentsFiled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "incidents_filed_total",
			Help:      "Incidents accepted into the feed by origin.",
		}, []string{"origin"}),
	}
}
