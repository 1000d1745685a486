/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exports Prometheus metrics and OpenTelemetry tracing
// for the playout service.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BuildsTotal counts playout builds by outcome.
	BuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pseudovision_playout_builds_total",
		Help: "Playout build invocations by outcome.",
	}, []string{"outcome"})

	// BuildDuration observes how long one playout build takes.
	BuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pseudovision_playout_build_duration_seconds",
		Help:    "Duration of playout builds.",
		Buckets: prometheus.DefBuckets,
	})

	// BuildEventsInserted counts timeline events written by builds.
	BuildEventsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pseudovision_playout_events_inserted_total",
		Help: "Timeline events inserted by playout builds.",
	})

	// SchedulerTicksTotal counts rebuild-loop ticks.
	SchedulerTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pseudovision_scheduler_ticks_total",
		Help: "Rebuild scheduler tick count.",
	})

	// SchedulerErrorsTotal counts rebuild-loop failures by cause.
	SchedulerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pseudovision_scheduler_errors_total",
		Help: "Rebuild scheduler errors by cause.",
	}, []string{"reason"})

	// ScanItemsTotal counts media items touched by library scans.
	ScanItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pseudovision_library_scan_items_total",
		Help: "Media items created or updated by library scans.",
	}, []string{"result"})

	// GuideRequestsTotal counts guide renders by output format.
	GuideRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pseudovision_guide_requests_total",
		Help: "EPG, M3U and HDHomeRun guide requests by format.",
	}, []string{"format"})

	// APIRequestDuration observes HTTP handler latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pseudovision_api_request_duration_seconds",
		Help:    "HTTP request duration by method, endpoint and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIRequestsTotal counts HTTP requests.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pseudovision_api_requests_total",
		Help: "HTTP requests by method, endpoint and status.",
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections gauges in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pseudovision_api_active_connections",
		Help: "HTTP requests currently in flight.",
	})

	// LeaderElectionStatus is 1 while an instance holds the rebuild
	// leadership lease.
	LeaderElectionStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pseudovision_leader_election_status",
		Help: "1 when the labelled instance is the rebuild leader.",
	}, []string{"instance"})

	// LeaderElectionChanges counts leadership transitions.
	LeaderElectionChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pseudovision_leader_election_changes_total",
		Help: "Leadership transitions by instance and direction.",
	}, []string{"instance", "transition"})

	// DatabaseQueryDuration observes gorm operation latency.
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pseudovision_database_query_duration_seconds",
		Help:    "Database operation duration by operation and table.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// DatabaseErrorsTotal counts database operation failures.
	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pseudovision_database_errors_total",
		Help: "Database errors by operation and kind.",
	}, []string{"operation", "kind"})

	// DatabaseConnectionsActive gauges open connections in the pool.
	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pseudovision_database_connections_active",
		Help: "Open database connections.",
	})
)

// ObserveBuild records one build invocation. A non-nil error overrides
// the outcome label.
func ObserveBuild(outcome string, err error, elapsed time.Duration, events int) {
	if err != nil {
		outcome = "error"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	BuildsTotal.WithLabelValues(outcome).Inc()
	BuildDuration.Observe(elapsed.Seconds())
	if events > 0 {
		BuildEventsInserted.Add(float64(events))
	}
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
