// Package telemetry provides application-level observability for the membership service.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<UMS_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090.  The endpoint returns data in the Prometheus text exposition
// format and is intended to be scraped by a Prometheus server every 15–60 seconds.
// It is NOT served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Application intake and verification outcome counters
//   - Mailbox scan duration and error counters
//   - Reminder, approval, and bulk notification counters
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/members/:id)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template, and status code.
//
// HTTPRequestsTotal is a CounterVec with labels {method, path, status}.
// The path label holds the Gin route template, NOT the raw URL.
//
// HTTPRequestDuration is a HistogramVec with labels {method, path} and
// exponential-ish buckets from 5 ms to 30 s.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Membership pipeline metrics.
//
// ApplicationsSubmittedTotal counts accepted membership applications.
// ApplicationsRejectedTotal is labelled {reason} ("validation", "duplicate")
// and counts refused intake attempts.
//
// VerificationsTotal is labelled {method, outcome}: method is the verification
// channel (email, badge, teams, inperson) and outcome is "verified", "flagged",
// or "skipped" (transition lost to a concurrent state change).
var (
	ApplicationsSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "applications_submitted_total",
			Help: "Total number of membership applications accepted.",
		},
	)

	ApplicationsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "applications_rejected_total",
			Help: "Total number of membership applications refused, by reason.",
		},
		[]string{"reason"},
	)

	VerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verifications_total",
			Help: "Total number of verification outcomes, by method and outcome.",
		},
		[]string{"method", "outcome"},
	)
)

// Mailbox scan metrics, recorded by the mailbox scanner job.
//
// MailboxScanDuration observes one complete scan cycle.
// MailboxMatchesTotal is labelled {outcome}: "matched", "ambiguous", "none",
// "duplicate", "error".
// MailboxScanErrorsTotal counts scan cycles that failed outright (IMAP
// connection or fetch errors), not per-message skips.
var (
	MailboxScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mailbox_scan_duration_seconds",
			Help:    "Duration of a single verification mailbox scan.",
			Buckets: prometheus.DefBuckets,
		},
	)

	MailboxMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailbox_matches_total",
			Help: "Total number of scanned mailbox messages, by match outcome.",
		},
		[]string{"outcome"},
	)

	MailboxScanErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailbox_scan_errors_total",
			Help: "Total number of failed mailbox scan cycles.",
		},
	)
)

// ReminderEmailsSentTotal is a plain Counter incremented once per reminder
// email successfully delivered. A stalled counter combined with members
// sitting pending is a useful alert signal for SMTP delivery failures.
var ReminderEmailsSentTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "reminder_emails_sent_total",
		Help: "Total number of verification reminder emails successfully sent.",
	},
)

// Approval and bulk notification metrics.
//
// MembersApprovedTotal counts successful approvals (member activated, card sent).
// BulkEmailsTotal is labelled {result}: "sent" or "failed", one increment per recipient.
var (
	MembersApprovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "members_approved_total",
			Help: "Total number of members approved and activated.",
		},
	)

	BulkEmailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulk_emails_total",
			Help: "Total number of bulk notification emails attempted, by result.",
		},
		[]string{"result"},
	)
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool.  It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits cleanly when the database becomes unreachable (db.Ping fails),
// which happens automatically when the application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go:
//
//	telemetry.StartDBStatsCollector(database)
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
