package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrandsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "errand_marketplace", Name: "errands_created_total",
		Help: "Total number of errands created",
	})
	StatusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "errand_marketplace", Name: "status_transitions_total",
			Help: "Errand status transitions applied",
		},
		[]string{"to"},
	)
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "errand_marketplace", Name: "notifications_total",
			Help: "Notification dispatch attempts by outcome",
		},
		[]string{"outcome"},
	)
	RefundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "errand_marketplace", Name: "refunds_total",
		Help: "Refund workflows triggered by cancellations",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "errand_marketplace", Name: "http_requests_total",
			Help: "Total HTTP requests handled",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "errand_marketplace", Name: "http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
