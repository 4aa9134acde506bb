package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	analysisStartedTotal   atomic.Uint64
	analysisCompletedTotal atomic.Uint64
	analysisFailedTotal    atomic.Uint64
	stageSoftFailureTotal  atomic.Uint64
	tieBreakTotal          atomic.Uint64

	jobsDispatchedTotal atomic.Uint64
	jobsCompletedTotal  atomic.Uint64
	jobsFailedTotal     atomic.Uint64
	jobsRetriedTotal    atomic.Uint64
	jobsCancelledTotal  atomic.Uint64

	analysisDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
	jobDuration      = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncAnalysisStarted increments the started counter.
func IncAnalysisStarted() {
	analysisStartedTotal.Add(1)
}

// IncAnalysisCompleted increments the completed counter.
func IncAnalysisCompleted() {
	analysisCompletedTotal.Add(1)
}

// IncAnalysisFailed increments the failed counter.
func IncAnalysisFailed() {
	analysisFailedTotal.Add(1)
}

// IncStageSoftFailure counts a non-fatal stage failure recorded on an analysis.
func IncStageSoftFailure() {
	stageSoftFailureTotal.Add(1)
}

// IncTieBreak counts a low-confidence sentiment resolved by tie-break.
func IncTieBreak() {
	tieBreakTotal.Add(1)
}

// IncJobDispatched counts an automation job inserted in queued state.
func IncJobDispatched() {
	jobsDispatchedTotal.Add(1)
}

// IncJobCompleted counts a successfully executed automation job.
func IncJobCompleted() {
	jobsCompletedTotal.Add(1)
}

// IncJobFailed counts a terminally failed automation job.
func IncJobFailed() {
	jobsFailedTotal.Add(1)
}

// IncJobRetried counts a failed execution that was requeued.
func IncJobRetried() {
	jobsRetriedTotal.Add(1)
}

// IncJobCancelled counts an explicitly cancelled automation job.
func IncJobCancelled() {
	jobsCancelledTotal.Add(1)
}

// ObserveAnalysisDurationMs records an analysis duration in milliseconds.
func ObserveAnalysisDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	analysisDuration.Observe(value)
}

// ObserveJobDurationMs records a job execution duration in milliseconds.
func ObserveJobDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	jobDuration.Observe(value)
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
	writeCounter(&buf, "analysis_started_total", "Total analyses started", analysisStartedTotal.Load())
	writeCounter(&buf, "analysis_completed_total", "Total analyses completed", analysisCompletedTotal.Load())
	writeCounter(&buf, "analysis_failed_total", "Total analyses failed", analysisFailedTotal.Load())
	writeCounter(&buf, "analysis_stage_soft_failure_total", "Total non-fatal stage failures", stageSoftFailureTotal.Load())
	writeCounter(&buf, "analysis_tie_break_total", "Total sentiment tie-breaks requested", tieBreakTotal.Load())
	writeCounter(&buf, "orchestrate_jobs_dispatched_total", "Total automation jobs enqueued", jobsDispatchedTotal.Load())
	writeCounter(&buf, "orchestrate_jobs_completed_total", "Total automation jobs completed", jobsCompletedTotal.Load())
	writeCounter(&buf, "orchestrate_jobs_failed_total", "Total automation jobs terminally failed", jobsFailedTotal.Load())
	writeCounter(&buf, "orchestrate_jobs_retried_total", "Total automation job retries", jobsRetriedTotal.Load())
	writeCounter(&buf, "orchestrate_jobs_cancelled_total", "Total automation jobs cancelled", jobsCancelledTotal.Load())
	writeHistogram(&buf, "analysis_duration_ms", "Analysis duration in milliseconds", analysisDuration.Snapshot())
	writeHistogram(&buf, "orchestrate_job_duration_ms", "Job execution duration in milliseconds", jobDuration.Snapshot())
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

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

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
