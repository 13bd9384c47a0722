// Package metrics holds the Prometheus collectors of the process.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AggregationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quadcursor_aggregations_total",
		Help: "Total completed aggregation passes",
	})
	AggregationsCancelledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quadcursor_aggregations_cancelled_total",
		Help: "Aggregation passes cancelled by a new move",
	})
	AggregationDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "quadcursor_aggregation_duration_ms",
		Help:    "Aggregation pass duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	ProviderErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quadcursor_provider_errors_total",
		Help: "Feature provider query failures",
	})
	FragmentsDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quadcursor_fragments_dropped_total",
		Help: "Clipped fragments dropped by reason",
	}, []string{"reason"})
	AnnouncementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quadcursor_announcements_total",
		Help: "Announcements pushed by region",
	}, []string{"region"})
	KeyTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quadcursor_key_transitions_total",
		Help: "Keyboard transitions by action",
	}, []string{"action"})
	POIRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quadcursor_poi_requests_total",
		Help: "Total POI category search requests",
	})
	POIFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quadcursor_poi_fail_total",
		Help: "Total POI category search failures",
	})
	POIDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "quadcursor_poi_duration_ms",
		Help:    "POI lookup duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 2000},
	})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quadcursor_cache_hits_total",
		Help: "POI cache hits by backend",
	}, []string{"backend"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quadcursor_cache_misses_total",
		Help: "POI cache misses by backend",
	}, []string{"backend"})
)

func init() {
	prometheus.MustRegister(AggregationsTotal)
	prometheus.MustRegister(AggregationsCancelledTotal)
	prometheus.MustRegister(AggregationDurationMs)
	prometheus.MustRegister(ProviderErrorsTotal)
	prometheus.MustRegister(FragmentsDroppedTotal)
	prometheus.MustRegister(AnnouncementsTotal)
	prometheus.MustRegister(KeyTransitionsTotal)
	prometheus.MustRegister(POIRequestsTotal)
	prometheus.MustRegister(POIFailTotal)
	prometheus.MustRegister(POIDurationMs)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
}

// Handler exposes the registered collectors for scraping
func Handler() http.Handler { return promhttp.Handler() }
