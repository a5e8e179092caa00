package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	jobsSubmittedTotal  atomic.Uint64
	jobsStartedTotal    atomic.Uint64
	jobsSucceededTotal  atomic.Uint64
	jobsFailedTotal     atomic.Uint64
	jobsReclaimedTotal  atomic.Uint64
	jobsExpiredTotal    atomic.Uint64
	jobsRequeuedTotal   atomic.Uint64
	enqueueFailedTotal  atomic.Uint64
	persistFailedTotal  atomic.Uint64
	documentsReleased   atomic.Uint64
	syncRunsTotal       atomic.Uint64
	rateLimitWaitsTotal atomic.Uint64
	janitorSweeps       atomic.Uint64
	jobsPurgedTotal     atomic.Uint64

	stageOutcomes  = newLabeledCounter()
	workerMessages = newLabeledCounter()

	jobDuration   = newHistogram([]float64{1000, 5000, 15000, 30000, 60000, 120000, 300000, 600000, 1200000})
	stageDuration = newHistogram([]float64{250, 1000, 2500, 5000, 10000, 30000, 60000, 300000})
)

// IncJobSubmitted counts accepted async submissions.
func IncJobSubmitted() { jobsSubmittedTotal.Add(1) }

// IncJobStarted counts jobs claimed by a worker.
func IncJobStarted() { jobsStartedTotal.Add(1) }

// IncJobSucceeded counts jobs that reached SUCCESS.
func IncJobSucceeded() { jobsSucceededTotal.Add(1) }

// IncJobFailed counts jobs that reached FAILURE.
func IncJobFailed() { jobsFailedTotal.Add(1) }

// IncJobReclaimed counts RUNNING jobs failed by the lease reaper.
func IncJobReclaimed(n int) {
	if n > 0 {
		jobsReclaimedTotal.Add(uint64(n))
	}
}

// IncJobExpired counts PENDING jobs failed because no worker picked them up.
func IncJobExpired(n int) {
	if n > 0 {
		jobsExpiredTotal.Add(uint64(n))
	}
}

// IncJobRequeued counts PENDING jobs sent to the broker again at startup.
func IncJobRequeued(n int) {
	if n > 0 {
		jobsRequeuedTotal.Add(uint64(n))
	}
}

// IncEnqueueFailed counts broker send failures.
func IncEnqueueFailed() { enqueueFailedTotal.Add(1) }

// IncPersistFailed counts terminal writes or archive appends that could not be stored.
func IncPersistFailed() { persistFailedTotal.Add(1) }

// IncDocumentReleased counts document deletions.
func IncDocumentReleased() { documentsReleased.Add(1) }

// IncSyncRun counts pipeline runs executed inline in a request.
func IncSyncRun() { syncRunsTotal.Add(1) }

// IncRateLimitWait counts model calls that had to wait for their role's quota.
func IncRateLimitWait() { rateLimitWaitsTotal.Add(1) }

// IncWorkerMessage counts broker messages by outcome (completed, failed, unrecoverable).
func IncWorkerMessage(outcome string) {
	workerMessages.Inc(fmt.Sprintf("outcome=%q", outcome))
}

// IncJanitorSweep counts janitor passes.
func IncJanitorSweep() { janitorSweeps.Add(1) }

// IncJobsPurged counts terminal jobs removed by retention.
func IncJobsPurged(n int64) {
	if n > 0 {
		jobsPurgedTotal.Add(uint64(n))
	}
}

// ObserveStage records one stage outcome ("ok" or an error kind) and its duration.
func ObserveStage(stage, outcome string, durationMs float64) {
	stageOutcomes.Inc(fmt.Sprintf("stage=%q,outcome=%q", stage, outcome))
	if durationMs < 0 {
		durationMs = 0
	}
	stageDuration.Observe(durationMs)
}

// ObserveJobDurationMs records a whole-run duration in milliseconds.
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
	writeCounter(&buf, "jobs_submitted_total", "Total async jobs submitted", jobsSubmittedTotal.Load())
	writeCounter(&buf, "jobs_started_total", "Total jobs claimed by a worker", jobsStartedTotal.Load())
	writeCounter(&buf, "jobs_succeeded_total", "Total jobs completed successfully", jobsSucceededTotal.Load())
	writeCounter(&buf, "jobs_failed_total", "Total jobs failed", jobsFailedTotal.Load())
	writeCounter(&buf, "jobs_reclaimed_total", "Total RUNNING jobs failed after lease expiry", jobsReclaimedTotal.Load())
	writeCounter(&buf, "jobs_expired_total", "Total PENDING jobs failed after waiting too long", jobsExpiredTotal.Load())
	writeCounter(&buf, "jobs_requeued_total", "Total PENDING jobs re-sent to the broker", jobsRequeuedTotal.Load())
	writeCounter(&buf, "enqueue_failed_total", "Total broker send failures", enqueueFailedTotal.Load())
	writeCounter(&buf, "persist_failed_total", "Total result persistence failures", persistFailedTotal.Load())
	writeCounter(&buf, "documents_released_total", "Total uploaded documents deleted", documentsReleased.Load())
	writeCounter(&buf, "sync_runs_total", "Total inline pipeline runs", syncRunsTotal.Load())
	writeCounter(&buf, "agent_rate_limit_waits_total", "Total model calls delayed by per-role quota", rateLimitWaitsTotal.Load())
	writeCounter(&buf, "janitor_sweeps_total", "Total janitor passes", janitorSweeps.Load())
	writeCounter(&buf, "jobs_purged_total", "Total terminal jobs removed by retention", jobsPurgedTotal.Load())
	writeLabeledCounter(&buf, "pipeline_stage_total", "Pipeline stage outcomes", stageOutcomes.Snapshot())
	writeLabeledCounter(&buf, "worker_messages_total", "Broker messages handled by outcome", workerMessages.Snapshot())
	writeHistogram(&buf, "job_duration_ms", "Pipeline run duration in milliseconds", jobDuration.Snapshot())
	writeHistogram(&buf, "stage_duration_ms", "Pipeline stage duration in milliseconds", stageDuration.Snapshot())
	return buf.String()
}

type labeledCounter struct {
	mu     sync.Mutex
	values map[string]uint64
}

func newLabeledCounter() *labeledCounter {
	return &labeledCounter{values: make(map[string]uint64)}
}

func (c *labeledCounter) Inc(labels string) {
	c.mu.Lock()
	c.values[labels]++
	c.mu.Unlock()
}

func (c *labeledCounter) Snapshot() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
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

// Observe stores each value in the first bucket that fits; Render accumulates.
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

func writeLabeledCounter(buf *bytes.Buffer, name, help string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s} %d\n", name, k, values[k])
	}
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
