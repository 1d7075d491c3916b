package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	stageStartedTotal   atomic.Uint64
	stageCompletedTotal atomic.Uint64
	stageFailedTotal    atomic.Uint64

	queriesMatchedTotal   atomic.Uint64
	queriesUnmatchedTotal atomic.Uint64

	jobsReceivedTotal             atomic.Uint64
	jobsCompletedTotal            atomic.Uint64
	jobsFailedTotal               atomic.Uint64
	jobsDeletedUnrecoverableTotal atomic.Uint64

	httpRateLimitedTotal atomic.Uint64
	httpPanicsTotal      atomic.Uint64

	stageDuration = newHistogram([]float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000})
)

// IncStageStarted increments the started counter.
func IncStageStarted() { stageStartedTotal.Add(1) }

// IncStageCompleted increments the completed counter.
func IncStageCompleted() { stageCompletedTotal.Add(1) }

// IncStageFailed increments the failed counter.
func IncStageFailed() { stageFailedTotal.Add(1) }

// AddQueryOutcomes records how many queries did and did not find an answer.
func AddQueryOutcomes(matched, unmatched int) {
	if matched > 0 {
		queriesMatchedTotal.Add(uint64(matched))
	}
	if unmatched > 0 {
		queriesUnmatchedTotal.Add(uint64(unmatched))
	}
}

// IncJobsReceived counts queue messages picked up by a worker.
func IncJobsReceived() { jobsReceivedTotal.Add(1) }

// IncJobsCompleted counts queue messages processed and deleted.
func IncJobsCompleted() { jobsCompletedTotal.Add(1) }

// IncJobsFailed counts queue messages left for redelivery.
func IncJobsFailed() { jobsFailedTotal.Add(1) }

// IncJobsDeletedUnrecoverable counts malformed messages dropped from the queue.
func IncJobsDeletedUnrecoverable() { jobsDeletedUnrecoverableTotal.Add(1) }

// IncRateLimited counts API requests rejected with 429.
func IncRateLimited() { httpRateLimitedTotal.Add(1) }

// IncPanics counts handler panics turned into 500s.
func IncPanics() { httpPanicsTotal.Add(1) }

// ObserveStageDurationMs records a stage duration in milliseconds.
func ObserveStageDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	stageDuration.Observe(value)
}

// Since returns the elapsed milliseconds since start.
func Since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "query_results_started_total", "Query-result stage invocations started", stageStartedTotal.Load())
	writeCounter(&buf, "query_results_completed_total", "Query-result stage invocations completed", stageCompletedTotal.Load())
	writeCounter(&buf, "query_results_failed_total", "Query-result stage invocations failed", stageFailedTotal.Load())
	writeCounter(&buf, "queries_matched_total", "Queries with at least one answer", queriesMatchedTotal.Load())
	writeCounter(&buf, "queries_unmatched_total", "Queries without an answer", queriesUnmatchedTotal.Load())
	writeCounter(&buf, "worker_jobs_received_total", "Queue messages received", jobsReceivedTotal.Load())
	writeCounter(&buf, "worker_jobs_completed_total", "Queue messages completed", jobsCompletedTotal.Load())
	writeCounter(&buf, "worker_jobs_failed_total", "Queue messages failed", jobsFailedTotal.Load())
	writeCounter(&buf, "worker_jobs_deleted_unrecoverable_total", "Malformed queue messages deleted", jobsDeletedUnrecoverableTotal.Load())
	writeCounter(&buf, "http_rate_limited_total", "API requests rejected by the rate limiter", httpRateLimitedTotal.Load())
	writeCounter(&buf, "http_panics_total", "Handler panics recovered", httpPanicsTotal.Load())
	writeHistogram(&buf, "query_results_duration_ms", "Query-result stage duration in milliseconds", stageDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe stores the value in the first bucket whose bound covers it.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

// writeHistogram emits cumulative bucket counts; counts are stored per bucket.
func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
