// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheResults counts TTL cache lookups by cache name and result.
	CacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipscope_cache_lookups_total",
			Help: "Cache lookups by cache and result",
		}, []string{"cache", "result"}) // result: hit, miss, miss_expired, miss_invalid

	// UpstreamRequests counts calls to upstream services by outcome.
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipscope_upstream_requests_total",
			Help: "Upstream API calls by service and outcome",
		}, []string{"service", "outcome"}) // outcome: ok, empty, degraded, client_error, retried, failed, unreadable

	// UpstreamLatency measures upstream round trips, including retries.
	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ipscope_upstream_request_duration_seconds",
			Help:    "Upstream API call latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"service"})

	// TransferResolutions counts explorer lookups by where the answer came from.
	TransferResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipscope_transfer_resolutions_total",
			Help: "Royalty transfer resolutions by source",
		}, []string{"source"}) // source: cache, store, explorer, failed

	// RoyaltyEventsFetched counts royalty events pulled from the transactions API.
	RoyaltyEventsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ipscope_royalty_events_fetched_total",
			Help: "Royalty payment events fetched from the transactions API",
		})
)
