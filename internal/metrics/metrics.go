package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reliefscope_api_requests_total",
			Help: "Total number of report API requests, by HTTP status",
		},
		[]string{"status"},
	)

	APIDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reliefscope_api_duration_seconds",
			Help:    "Duration of report API requests in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reliefscope_cache_lookups_total",
			Help: "Fetch cache lookups, by result (hit or miss)",
		},
		[]string{"result"},
	)

	ScrapeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reliefscope_scrape_requests_total",
			Help: "Total number of page scrapes executed",
		},
		[]string{"domain", "status", "detected", "detection_src"},
	)

	ScrapeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reliefscope_scrape_duration_seconds",
			Help:    "Duration of page fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reliefscope_exports_total",
			Help: "CSV exports and uploads handled, by kind",
		},
		[]string{"kind"},
	)
)

// RecordAPIRequest updates API metrics. A status of 0 means the request
// never produced a response.
func RecordAPIRequest(status int, d time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	APIRequestsTotal.WithLabelValues(label).Inc()
	APIDuration.Observe(d.Seconds())
}

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	CacheLookupsTotal.WithLabelValues("miss").Inc()
}

// RecordScrape updates the scrape metrics for a single page fetch.
func RecordScrape(domain string, status int, detected bool, detectionSrc string, d time.Duration) {
	statusStr := "error"
	if status > 0 {
		statusStr = strconv.Itoa(status)
	}
	ScrapeRequestsTotal.WithLabelValues(domain, statusStr, strconv.FormatBool(detected), detectionSrc).Inc()
	ScrapeDuration.WithLabelValues(domain).Observe(d.Seconds())
}

// RecordExport counts a CSV download ("download") or upload ("upload").
func RecordExport(kind string) {
	ExportsTotal.WithLabelValues(kind).Inc()
}

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
