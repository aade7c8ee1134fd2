// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brewbuds_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "brewbuds_http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)

	RankingCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brewbuds_ranking_cache_hits_total",
			Help: "Ranking reads answered from the cache",
		},
		[]string{"ranking"},
	)

	RankingCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brewbuds_ranking_cache_misses_total",
			Help: "Ranking reads that had to be recomputed",
		},
		[]string{"ranking"},
	)

	RankingWarmDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brewbuds_ranking_warm_duration_seconds",
			Help:    "Duration of ranking warm jobs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"ranking"},
	)

	LikeToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brewbuds_like_toggles_total",
			Help: "Like toggles by object type and resulting state",
		},
		[]string{"object_type", "liked"},
	)

	FeedViews = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brewbuds_feed_first_views_total",
			Help: "First views counted per object kind",
		},
		[]string{"kind"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brewbuds_notifications_total",
			Help: "Stored notifications by type",
		},
		[]string{"type"},
	)

	PushResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brewbuds_push_results_total",
			Help: "Push delivery outcomes",
		},
		[]string{"result"}, // "ok", "error", "dropped", "unregistered", "breaker_open"
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brewbuds_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter",
		},
	)

	PanicsRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brewbuds_http_panics_total",
			Help: "Handler panics turned into 500 responses",
		},
	)

	AuditDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brewbuds_audit_dropped_total",
			Help: "Audit entries dropped because the queue was full",
		},
	)
)

// RecordHTTPRequest observes one finished request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// RecordRankingRead counts a ranking read as a hit or a miss.
func RecordRankingRead(ranking string, hit bool) {
	if hit {
		RankingCacheHits.WithLabelValues(ranking).Inc()
		return
	}
	RankingCacheMisses.WithLabelValues(ranking).Inc()
}

func RecordLikeToggle(objectType string, liked bool) {
	LikeToggles.WithLabelValues(objectType, strconv.FormatBool(liked)).Inc()
}

func RecordPush(result string) {
	PushResults.WithLabelValues(result).Inc()
}
