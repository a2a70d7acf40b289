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
	decksRenderedTotal    atomic.Uint64
	renderFailedTotal     atomic.Uint64
	shapesSkippedTotal    atomic.Uint64
	evaluatorCallsTotal   atomic.Uint64
	evaluatorFailedTotal  atomic.Uint64
	refineIterationsTotal atomic.Uint64
	fixesAppliedTotal     atomic.Uint64
	validationsTotal      atomic.Uint64

	checkpointsSubmittedTotal atomic.Uint64
	checkpointsApprovedTotal  atomic.Uint64
	checkpointsRejectedTotal  atomic.Uint64

	runsStartedTotal   atomic.Uint64
	runsCompletedTotal atomic.Uint64
	runsFailedTotal    atomic.Uint64

	runDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 300000})
)

// IncDeckRendered counts a deck rendered to frames.
func IncDeckRendered() { decksRenderedTotal.Add(1) }

// IncRenderFailed counts a deck render that returned an error.
func IncRenderFailed() { renderFailedTotal.Add(1) }

// IncShapeSkipped counts a shape whose drawing panicked and was skipped.
func IncShapeSkipped() { shapesSkippedTotal.Add(1) }

// IncEvaluatorCall counts one evaluator invocation.
func IncEvaluatorCall() { evaluatorCallsTotal.Add(1) }

// IncEvaluatorFailed counts an evaluator invocation that errored.
func IncEvaluatorFailed() { evaluatorFailedTotal.Add(1) }

// IncRefineIteration counts one refinement iteration.
func IncRefineIteration() { refineIterationsTotal.Add(1) }

// AddFixesApplied counts position fixes applied to a deck.
func AddFixesApplied(n int) {
	if n > 0 {
		fixesAppliedTotal.Add(uint64(n))
	}
}

// IncValidation counts a completed validation pass.
func IncValidation() { validationsTotal.Add(1) }

// IncCheckpointSubmitted counts a new pending checkpoint.
func IncCheckpointSubmitted() { checkpointsSubmittedTotal.Add(1) }

// IncCheckpointApproved counts an approval.
func IncCheckpointApproved() { checkpointsApprovedTotal.Add(1) }

// IncCheckpointRejected counts a rejection.
func IncCheckpointRejected() { checkpointsRejectedTotal.Add(1) }

// IncRunStarted increments the started counter.
func IncRunStarted() { runsStartedTotal.Add(1) }

// IncRunCompleted increments the completed counter.
func IncRunCompleted() { runsCompletedTotal.Add(1) }

// IncRunFailed increments the failed counter.
func IncRunFailed() { runsFailedTotal.Add(1) }

// ObserveRunDurationMs records a run duration in milliseconds.
func ObserveRunDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	runDuration.Observe(value)
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
	writeCounter(&buf, "decks_rendered_total", "Total decks rendered to preview frames", decksRenderedTotal.Load())
	writeCounter(&buf, "render_failed_total", "Total deck renders that failed", renderFailedTotal.Load())
	writeCounter(&buf, "shapes_skipped_total", "Total shapes skipped after a drawing fault", shapesSkippedTotal.Load())
	writeCounter(&buf, "evaluator_calls_total", "Total evaluator invocations", evaluatorCallsTotal.Load())
	writeCounter(&buf, "evaluator_failed_total", "Total evaluator invocations that failed", evaluatorFailedTotal.Load())
	writeCounter(&buf, "refine_iterations_total", "Total refinement iterations", refineIterationsTotal.Load())
	writeCounter(&buf, "fixes_applied_total", "Total position fixes applied", fixesAppliedTotal.Load())
	writeCounter(&buf, "validations_total", "Total validation passes", validationsTotal.Load())
	writeCounter(&buf, "checkpoints_submitted_total", "Total checkpoints submitted", checkpointsSubmittedTotal.Load())
	writeCounter(&buf, "checkpoints_approved_total", "Total checkpoints approved", checkpointsApprovedTotal.Load())
	writeCounter(&buf, "checkpoints_rejected_total", "Total checkpoints rejected", checkpointsRejectedTotal.Load())
	writeCounter(&buf, "runs_started_total", "Total design runs started", runsStartedTotal.Load())
	writeCounter(&buf, "runs_completed_total", "Total design runs completed", runsCompletedTotal.Load())
	writeCounter(&buf, "runs_failed_total", "Total design runs failed", runsFailedTotal.Load())
	writeHistogram(&buf, "run_duration_ms", "Design run duration in milliseconds", runDuration.Snapshot())
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

// Observe records value in the first bucket that holds it; Render
// accumulates across buckets.
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

// NowMillis returns current time in milliseconds, useful for callers without time utilities.
func NowMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}
