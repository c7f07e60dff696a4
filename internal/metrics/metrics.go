// Package metrics provides Prometheus metrics for the cloudbrowser client.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// API request metrics
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudbrowser_api_requests_total",
			Help: "Total number of API requests by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cloudbrowser_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Listing metrics
	listingsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cloudbrowser_listings_discarded_total",
			Help: "Listing responses dropped because a newer request was issued",
		},
	)

	listingSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cloudbrowser_listing_entries",
			Help: "Number of entries in the current listing",
		},
	)

	// Transfer metrics
	uploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cloudbrowser_upload_bytes_total",
			Help: "Total bytes sent by uploads",
		},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudbrowser_uploads_total",
			Help: "Total number of upload batches",
		},
		[]string{"status"},
	)

	downloadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cloudbrowser_download_bytes_total",
			Help: "Total bytes received by downloads",
		},
	)

	downloadCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudbrowser_download_cache_total",
			Help: "Download cache lookups by result",
		},
		[]string{"result"},
	)

	// Auth metrics
	forcedLogouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cloudbrowser_forced_logouts_total",
			Help: "Sessions cleared because the server answered 401",
		},
	)
)

// Handler returns the Prometheus metrics handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest records one API call. outcome is "ok" or an error kind.
func RecordAPIRequest(op, outcome string, duration time.Duration) {
	apiRequestsTotal.WithLabelValues(op, outcome).Inc()
	apiRequestDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordListingDiscarded counts a stale listing response.
func RecordListingDiscarded() {
	listingsDiscarded.Inc()
}

// SetListingSize sets the size of the current listing.
func SetListingSize(n int) {
	listingSize.Set(float64(n))
}

// RecordUpload records a finished upload batch.
func RecordUpload(bytes int64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	uploadsTotal.WithLabelValues(status).Inc()
	if success {
		uploadBytes.Add(float64(bytes))
	}
}

// RecordDownload records bytes received by a download.
func RecordDownload(bytes int64) {
	downloadBytes.Add(float64(bytes))
}

// RecordCacheLookup records a download cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	downloadCacheHits.WithLabelValues(result).Inc()
}

// RecordForcedLogout counts a 401-triggered logout.
func RecordForcedLogout() {
	forcedLogouts.Inc()
}

// Serve exposes the metrics handler on addr until the server fails.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}
