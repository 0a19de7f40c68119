package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connection_request_transitions_total",
			Help: "Connection request transitions by target status",
		},
		[]string{"to"},
	)

	ConnectionTransitionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connection_request_transitions_rejected_total",
			Help: "Connection request operations refused, by error code",
		},
		[]string{"operation", "code"},
	)

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Notifications created by type",
		},
		[]string{"type"},
	)

	UnreadCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_unread_cache_lookups_total",
			Help: "Unread count cache lookups by result",
		},
		[]string{"result"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
