// Package metrics provides Prometheus metrics for vfslib.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the metrics surface the vfs package records against. A real
// *Metrics satisfies it against a live Prometheus registry; Noop() satisfies
// it by discarding everything, so the library works for callers that never
// stood up a registry — unlike the teacher's server, which always runs one.
type Recorder interface {
	RecordPagesAllocated(n int)
	RecordPagesFreed(n int)
	SetBitmapPagesInUse(n int)
	RecordCommit(kind string, duration time.Duration)
	RecordRelocation(subject string)
	RecordHandleRead(n int)
	RecordHandleWrite(n int)
	IncOpenHandles()
	DecOpenHandles()
}

// Metrics holds all Prometheus metrics for vfslib.
type Metrics struct {
	PagesAllocatedTotal prometheus.Counter
	PagesFreedTotal     prometheus.Counter
	BitmapPagesInUse    prometheus.Gauge

	CommitsTotal        *prometheus.CounterVec
	CommitDuration      *prometheus.HistogramVec
	RelocationsTotal    *prometheus.CounterVec

	HandleReadsTotal       prometheus.Counter
	HandleWritesTotal      prometheus.Counter
	HandleBytesReadTotal   prometheus.Counter
	HandleBytesWrittenTotal prometheus.Counter
	OpenHandles            prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics against the
// default registerer.
func NewMetrics() *Metrics {
	m := &Metrics{}

	m.PagesAllocatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vfs_pages_allocated_total",
		Help: "Total number of pages allocated from the bitmap.",
	})
	m.PagesFreedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vfs_pages_freed_total",
		Help: "Total number of pages freed back to the bitmap.",
	})
	m.BitmapPagesInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vfs_bitmap_pages_in_use",
		Help: "Highest page marked allocated in the bitmap, plus one.",
	})

	m.CommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vfs_commits_total",
			Help: "Total number of journal schedule+resolve commits, by kind.",
		},
		[]string{"kind"},
	)
	m.CommitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vfs_commit_duration_seconds",
			Help:    "Duration of journal commits in seconds, by kind.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"kind"},
	)
	m.RelocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vfs_relocations_total",
			Help: "Total number of relocate-on-grow events, by subject.",
		},
		[]string{"subject"},
	)

	m.HandleReadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vfs_handle_reads_total",
		Help: "Total number of File.Read calls that returned data.",
	})
	m.HandleWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vfs_handle_writes_total",
		Help: "Total number of File.Write calls.",
	})
	m.HandleBytesReadTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vfs_handle_bytes_read_total",
		Help: "Total number of bytes returned by File.Read.",
	})
	m.HandleBytesWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vfs_handle_bytes_written_total",
		Help: "Total number of bytes accepted by File.Write.",
	})
	m.OpenHandles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vfs_open_handles",
		Help: "Current number of open File handles.",
	})

	return m
}

func (m *Metrics) RecordPagesAllocated(n int) {
	m.PagesAllocatedTotal.Add(float64(n))
}

func (m *Metrics) RecordPagesFreed(n int) {
	m.PagesFreedTotal.Add(float64(n))
}

func (m *Metrics) SetBitmapPagesInUse(n int) {
	m.BitmapPagesInUse.Set(float64(n))
}

func (m *Metrics) RecordCommit(kind string, duration time.Duration) {
	m.CommitsTotal.WithLabelValues(kind).Inc()
	m.CommitDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *Metrics) RecordRelocation(subject string) {
	m.RelocationsTotal.WithLabelValues(subject).Inc()
}

func (m *Metrics) RecordHandleRead(n int) {
	m.HandleReadsTotal.Inc()
	m.HandleBytesReadTotal.Add(float64(n))
}

func (m *Metrics) RecordHandleWrite(n int) {
	m.HandleWritesTotal.Inc()
	m.HandleBytesWrittenTotal.Add(float64(n))
}

func (m *Metrics) IncOpenHandles() {
	m.OpenHandles.Inc()
}

func (m *Metrics) DecOpenHandles() {
	m.OpenHandles.Dec()
}

// noopRecorder discards every recording. Used as the default Recorder so the
// library works without a caller having stood up a Prometheus registry.
type noopRecorder struct{}

// Noop returns a Recorder that discards everything.
func Noop() Recorder { return noopRecorder{} }

func (noopRecorder) RecordPagesAllocated(int)             {}
func (noopRecorder) RecordPagesFreed(int)                 {}
func (noopRecorder) SetBitmapPagesInUse(int)              {}
func (noopRecorder) RecordCommit(string, time.Duration)   {}
func (noopRecorder) RecordRelocation(string)              {}
func (noopRecorder) RecordHandleRead(int)                 {}
func (noopRecorder) RecordHandleWrite(int)                {}
func (noopRecorder) IncOpenHandles()                      {}
func (noopRecorder) DecOpenHandles()                      {}
