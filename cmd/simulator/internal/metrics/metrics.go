package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SweepsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "analytics_sweeps_total", Help: "Completed simulation sweeps"},
	)
	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "analytics_sweep_duration_seconds", Help: "Wall time of one sweep including dispatch", Buckets: prometheus.DefBuckets},
	)
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "analytics_ticks_total", Help: "Observations generated per ticker"},
		[]string{"ticker"},
	)
	AnomaliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "analytics_anomalies_total", Help: "Anomalies detected"},
		[]string{"ticker", "type"},
	)
	SinkFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "analytics_sink_failures_total", Help: "Records that could not be delivered"},
		[]string{"ticker"},
	)
	LastPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "analytics_last_price", Help: "Most recent simulated price"},
		[]string{"ticker"},
	)
	ServiceUp = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "analytics_service_up", Help: "Analytics service is up"},
	)
)

func init() {
	prometheus.MustRegister(SweepsTotal, SweepDuration, TicksTotal, AnomaliesTotal, SinkFailuresTotal, LastPrice, ServiceUp)
}
