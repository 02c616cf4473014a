// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_sessions_started_total",
		Help: "Attendance sessions opened.",
	})

	SessionsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_sessions_closed_total",
		Help: "Attendance sessions closed.",
	})

	// Submissions is labelled by result: accepted, invalid_code, forbidden, conflict, not_found, error.
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_submissions_total",
		Help: "Attendance submissions by result.",
	}, []string{"result"})

	CodeCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_code_collisions_total",
		Help: "Join code draws rejected because the code was held by another open session.",
	})

	HistoryCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_history_cache_lookups_total",
		Help: "History cache lookups by outcome (hit, miss, error).",
	}, []string{"outcome"})

	HTTPRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rollcall_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_http_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	})
)
