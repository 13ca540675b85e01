// Package metrics holds the Prometheus collectors for scans and API traffic.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan results used as the result label.
const (
	ResultSuccess    = "success"
	ResultCached     = "cached"
	ResultFetchError = "fetch_error"
	ResultNoDocument = "no_document"
	ResultError      = "error"
)

var (
	// scansTotal counts scans by outcome.
	scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scanvui",
		Name:      "scans_total",
		Help:      "Total page scans by result",
	}, []string{"result"})

	scanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "scanvui",
		Name:      "scan_duration_seconds",
		Help:      "Time spent walking and classifying one document",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	scanVisitedNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "scanvui",
		Name:      "scan_visited_nodes",
		Help:      "Elements visited per scan",
		Buckets:   prometheus.ExponentialBuckets(16, 2, 12),
	})

	boundaryCrossings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "scanvui",
		Name:      "boundary_crossings_total",
		Help:      "Shadow roots entered across all scans",
	})

	// skippedNodes counts elements left out of a report.
	// Labels: stage (walk, classify, structured_data)
	skippedNodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scanvui",
		Name:      "skipped_nodes_total",
		Help:      "Nodes or blocks skipped while scanning",
	}, []string{"stage"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scanvui",
		Name:      "http_requests_total",
		Help:      "API requests by method, route and status",
	}, []string{"method", "route", "status"})
)

// Scan describes one finished scan.
type Scan struct {
	Duration          time.Duration
	VisitedNodes      int
	BoundaryCrossings int
	WalkSkipped       int
	ClassifySkipped   int
	MalformedBlocks   int
}

// RecordScan records a successful scan.
func RecordScan(s Scan) {
	scansTotal.WithLabelValues(ResultSuccess).Inc()
	scanDuration.Observe(s.Duration.Seconds())
	scanVisitedNodes.Observe(float64(s.VisitedNodes))
	boundaryCrossings.Add(float64(s.BoundaryCrossings))
	skippedNodes.WithLabelValues("walk").Add(float64(s.WalkSkipped))
	skippedNodes.WithLabelValues("classify").Add(float64(s.ClassifySkipped))
	skippedNodes.WithLabelValues("structured_data").Add(float64(s.MalformedBlocks))
}

// RecordResult counts a scan that ended without a fresh report.
func RecordResult(result string) {
	scansTotal.WithLabelValues(result).Inc()
}

// RecordRequest counts one API request.
func RecordRequest(method, route string, status int) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
