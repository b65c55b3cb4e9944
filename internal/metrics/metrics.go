// Package metrics provides Prometheus metrics for batch transcoding.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vcompress"

// Thumbnail extraction results.
const (
	ThumbnailOK     = "ok"
	ThumbnailFailed = "failed"
)

var (
	batchRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "batch",
		Name:      "running",
		Help:      "1 while a batch run is active",
	})

	batchFilesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "batch",
		Name:      "files_total",
		Help:      "Files in the current batch run",
	})

	batchFilesCompleted = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "batch",
		Name:      "files_completed",
		Help:      "Files finished in the current batch run",
	})

	fileProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "file",
		Name:      "progress_percent",
		Help:      "Progress of the file being encoded",
	})

	fileETA = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "file",
		Name:      "eta_seconds",
		Help:      "Estimated seconds remaining for the file being encoded",
	})

	encodeSpeed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ffmpeg",
		Name:      "encode_speed",
		Help:      "Encoder speed relative to realtime",
	})

	filesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "files_failed_total",
		Help:      "Files whose encoder exited non-zero",
	})

	thumbnails = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "thumbnails_total",
		Help:      "Thumbnail extraction attempts by result",
	}, []string{"result"})

	runs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Finished batch runs by terminal status",
	}, []string{"status"})

	// Local cache for the JSON status endpoint.
	current   BatchStats
	currentMu sync.RWMutex
)

// BatchStats holds current metric values of the active run.
type BatchStats struct {
	Running        bool    `json:"running"`
	FilesTotal     int     `json:"files_total"`
	FilesCompleted int     `json:"files_completed"`
	FilesFailed    int     `json:"files_failed"`
	FilePercent    float64 `json:"file_percent"`
	ETASeconds     float64 `json:"eta_seconds"`
	Speed          float64 `json:"speed"`
}

// Handler returns the Prometheus metrics HTTP handler.
// This collects all promauto-registered metrics automatically.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetRunning marks the start or end of a run.
func SetRunning(running bool) {
	v := 0.0
	if running {
		v = 1
	}
	batchRunning.Set(v)
	update(func(s *BatchStats) {
		s.Running = running
		if running {
			s.FilesFailed = 0
		}
	})
}

// SetBatchProgress records completed out of total files.
func SetBatchProgress(completed, total int) {
	batchFilesCompleted.Set(float64(completed))
	batchFilesTotal.Set(float64(total))
	update(func(s *BatchStats) {
		s.FilesCompleted = completed
		s.FilesTotal = total
	})
}

// SetFileProgress records the current file percent and encoder speed.
// A zero speed leaves the previous speed in place.
func SetFileProgress(percent, speed float64) {
	fileProgress.Set(percent)
	if speed > 0 {
		encodeSpeed.Set(speed)
	}
	update(func(s *BatchStats) {
		s.FilePercent = percent
		if speed > 0 {
			s.Speed = speed
		}
	})
}

// SetETA records the estimated seconds remaining for the current file.
func SetETA(seconds float64) {
	fileETA.Set(seconds)
	update(func(s *BatchStats) { s.ETASeconds = seconds })
}

// ResetFile clears per-file gauges between files.
func ResetFile() {
	fileProgress.Set(0)
	fileETA.Set(0)
	encodeSpeed.Set(0)
	update(func(s *BatchStats) {
		s.FilePercent = 0
		s.ETASeconds = 0
		s.Speed = 0
	})
}

// IncFilesFailed counts a file whose encoder exited non-zero.
func IncFilesFailed() {
	filesFailed.Inc()
	update(func(s *BatchStats) { s.FilesFailed++ })
}

// IncThumbnails counts one thumbnail extraction attempt.
func IncThumbnails(result string) {
	thumbnails.WithLabelValues(result).Inc()
}

// IncRuns counts a finished run.
func IncRuns(status string) {
	runs.WithLabelValues(status).Inc()
}

// Current returns a copy of the current batch metrics.
func Current() BatchStats {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}

func update(fn func(*BatchStats)) {
	currentMu.Lock()
	defer currentMu.Unlock()
	fn(&current)
}
