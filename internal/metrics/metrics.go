package metrics

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, path, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, path, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// UndoEntriesTotal counts undo entries recorded by resource and method.
	UndoEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "undo_entries_total",
			Help: "Total number of undo entries recorded",
		},
		[]string{"resource", "method"},
	)

	// UndoLogSize is the number of entries currently held in the undo log.
	UndoLogSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "undo_log_size",
			Help: "Number of entries in the undo log",
		},
	)

	// UndoEvictionsTotal counts entries dropped from the undo log by reason (ttl, capacity).
	UndoEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "undo_evictions_total",
			Help: "Total number of undo entries evicted",
		},
		[]string{"reason"},
	)

	// RollbacksTotal counts rollback attempts by outcome (ok, not_found, forbidden, expired, failed).
	RollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "undo_rollbacks_total",
			Help: "Total number of rollback attempts by outcome",
		},
		[]string{"outcome"},
	)

	// StoreFlushesTotal counts persistence flushes by status (ok, error).
	StoreFlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_flushes_total",
			Help: "Total number of document store flushes by status",
		},
		[]string{"status"},
	)
)

var (
	uuidPathSegment    = regexp.MustCompile(`/[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}(/|$)`)
	numericPathSegment = regexp.MustCompile(`/[0-9]+(/|$)`)
	initOnce           sync.Once
)

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestDuration, RequestTotal,
			UndoEntriesTotal, UndoLogSize, UndoEvictionsTotal, RollbacksTotal, StoreFlushesTotal)
	})
}

// NormalizePath reduces cardinality by replacing uuid and numeric path segments with {id}.
// E.g. /clients/123 -> /clients/{id}, /undo-actions/<uuid>/rollback -> /undo-actions/{id}/rollback.
func NormalizePath(path string) string {
	path = uuidPathSegment.ReplaceAllString(path, "/{id}$1")
	return numericPathSegment.ReplaceAllString(path, "/{id}$1")
}

// RecordRequest records duration and count for an HTTP request. Call from middleware with method, path, statusCode, duration.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	path = NormalizePath(path)
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

func IncUndoEntries(resource, method string) {
	UndoEntriesTotal.WithLabelValues(resource, method).Inc()
}

func SetUndoLogSize(n int) {
	UndoLogSize.Set(float64(n))
}

func AddUndoEvictions(reason string, n int) {
	UndoEvictionsTotal.WithLabelValues(reason).Add(float64(n))
}

func IncRollbacks(outcome string) {
	RollbacksTotal.WithLabelValues(outcome).Inc()
}

func IncStoreFlushes(status string) {
	StoreFlushesTotal.WithLabelValues(status).Inc()
}
