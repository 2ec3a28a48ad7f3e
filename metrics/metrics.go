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
	sessionsStartedTotal   atomic.Uint64
	sessionsRestartedTotal atomic.Uint64
	capturesAcceptedTotal  atomic.Uint64
	capturesRejectedTotal  atomic.Uint64
	detectorErrorsTotal    atomic.Uint64
	photosSavedTotal       atomic.Uint64

	uploadsStartedTotal   atomic.Uint64
	uploadsCompletedTotal atomic.Uint64
	uploadsFailed         = newCounterVec()
	blobsPurgedTotal      atomic.Uint64
	purgeFailuresTotal    atomic.Uint64

	uploadDuration = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
)

// IncSessionsStarted increments the started sessions counter.
func IncSessionsStarted() {
	sessionsStartedTotal.Add(1)
}

// IncSessionsRestarted increments the restarted sessions counter.
func IncSessionsRestarted() {
	sessionsRestartedTotal.Add(1)
}

// IncCaptureAccepted counts a photo the detector accepted.
func IncCaptureAccepted() {
	capturesAcceptedTotal.Add(1)
}

// IncCaptureRejected counts a photo without a visible reference sheet.
func IncCaptureRejected() {
	capturesRejectedTotal.Add(1)
}

// IncDetectorError counts a failed detector call.
func IncDetectorError() {
	detectorErrorsTotal.Add(1)
}

// IncPhotoSaved counts a photo committed to a session.
func IncPhotoSaved() {
	photosSavedTotal.Add(1)
}

// IncUploadStarted increments the started uploads counter.
func IncUploadStarted() {
	uploadsStartedTotal.Add(1)
}

// IncUploadCompleted increments the completed uploads counter.
func IncUploadCompleted() {
	uploadsCompletedTotal.Add(1)
}

// IncUploadFailed counts a failed upload by error code.
func IncUploadFailed(code string) {
	uploadsFailed.Inc(code)
}

// AddBlobsPurged counts superseded photos deleted from storage.
func AddBlobsPurged(n int) {
	if n > 0 {
		blobsPurgedTotal.Add(uint64(n))
	}
}

// IncPurgeFailure counts a superseded photo that could not be deleted.
func IncPurgeFailure() {
	purgeFailuresTotal.Add(1)
}

// ObserveUploadDurationMs records an upload duration in milliseconds.
func ObserveUploadDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	uploadDuration.Observe(value)
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
	writeCounter(&buf, "scan_sessions_started_total", "Total capture sessions started", sessionsStartedTotal.Load())
	writeCounter(&buf, "scan_sessions_restarted_total", "Total capture sessions restarted", sessionsRestartedTotal.Load())
	writeCounter(&buf, "scan_captures_accepted_total", "Total photos accepted by the sheet detector", capturesAcceptedTotal.Load())
	writeCounter(&buf, "scan_captures_rejected_total", "Total photos rejected for a missing reference sheet", capturesRejectedTotal.Load())
	writeCounter(&buf, "scan_detector_errors_total", "Total failed sheet detector calls", detectorErrorsTotal.Load())
	writeCounter(&buf, "scan_photos_saved_total", "Total photos saved into sessions", photosSavedTotal.Load())
	writeCounter(&buf, "scan_uploads_started_total", "Total upload pipelines started", uploadsStartedTotal.Load())
	writeCounter(&buf, "scan_uploads_completed_total", "Total upload pipelines completed", uploadsCompletedTotal.Load())
	writeCounterVec(&buf, "scan_uploads_failed_total", "Total upload pipelines failed", "code", uploadsFailed.Snapshot())
	writeCounter(&buf, "scan_blobs_purged_total", "Total superseded photos deleted", blobsPurgedTotal.Load())
	writeCounter(&buf, "scan_purge_failures_total", "Total superseded photos that could not be deleted", purgeFailuresTotal.Load())
	writeHistogram(&buf, "scan_upload_duration_ms", "Upload pipeline duration in milliseconds", uploadDuration.Snapshot())
	return buf.String()
}

type counterVec struct {
	mu     sync.Mutex
	values map[string]uint64
}

func newCounterVec() *counterVec {
	return &counterVec{values: make(map[string]uint64)}
}

func (v *counterVec) Inc(label string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.values[label]++
}

func (v *counterVec) Snapshot() map[string]uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[string]uint64, len(v.values))
	for k, n := range v.values {
		out[k] = n
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

func writeCounterVec(buf *bytes.Buffer, name, help, label string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

// writeHistogram emits cumulative buckets; Observe stores each value in its
// first matching bucket only.
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
