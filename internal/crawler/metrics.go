package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	fetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricecompare_fetches_total",
		Help: "Shop page fetches by outcome",
	}, []string{"shop", "backend", "result"})

	fetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pricecompare_fetch_duration_seconds",
		Help:    "Time spent fetching and extracting a shop page",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})

	recordsExtracted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricecompare_records_extracted_total",
		Help: "Product records extracted from search pages",
	}, []string{"shop"})

	itemsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricecompare_items_skipped_total",
		Help: "Product items dropped because they could not be parsed or did not match the phrase",
	}, []string{"shop", "reason"})

	renderedSessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pricecompare_rendered_sessions_active",
		Help: "Open headless browser sessions",
	})
)

func init() {
	prometheus.MustRegister(fetchesTotal, fetchDuration, recordsExtracted, itemsSkipped, renderedSessionsActive)
}
