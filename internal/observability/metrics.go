package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homehive_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// CacheLookups counts cache-aside lookups by key family and result (hit or miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homehive_cache_lookups_total",
		Help: "Cache-aside lookups by key family and result",
	}, []string{"family", "result"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "homehive_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// EngagementToggles counts like/favorite toggles by kind and resulting state.
	EngagementToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homehive_engagement_toggles_total",
		Help: "Like and favorite toggles by kind and resulting state",
	}, []string{"kind", "state"})

	// MediaUploads counts media uploads by category, media kind and outcome.
	MediaUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homehive_media_uploads_total",
		Help: "Media uploads by category, kind and outcome",
	}, []string{"category", "kind", "outcome"})

	// MessagesSent counts direct messages persisted.
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homehive_messages_sent_total",
		Help: "Direct messages sent",
	}, []string{"has_media"})

	// WebSocketConnectionsTotal is the gauge of active WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "homehive_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homehive_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homehive_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// RecordToggle counts a like or favorite toggle.
func RecordToggle(kind string, active bool) {
	state := "removed"
	if active {
		state = "added"
	}
	EngagementToggles.WithLabelValues(kind, state).Inc()
}

// RecordUpload counts a media upload attempt.
func RecordUpload(category, kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	MediaUploads.WithLabelValues(category, kind, outcome).Inc()
}

// RecordMessageSent counts a persisted direct message.
func RecordMessageSent(hasMedia bool) {
	label := "false"
	if hasMedia {
		label = "true"
	}
	MessagesSent.WithLabelValues(label).Inc()
}
