// Package metrics exposes Prometheus metrics for jobs, readings and HTTP traffic.
package metrics

import (
	"bytes"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"

	"github.com/psantana5/vitals-engine/pkg/models"
)

const namespace = "vitals"

// Metrics owns a private registry so tests and embedders never collide on the default one
type Metrics struct {
	registry *prometheus.Registry

	jobsStarted   prometheus.Counter
	jobsRejected  prometheus.Counter
	jobsFinished  *prometheus.CounterVec
	jobDuration   prometheus.Histogram
	jobRunning    prometheus.Gauge
	readingsTotal prometheus.Counter
	latestRate    *prometheus.GaugeVec
	latestTime    prometheus.Gauge
	uploadBytes   prometheus.Histogram

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	httpBytesSent *prometheus.CounterVec
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_started_total",
			Help:      "Jobs accepted by the controller",
		}),
		jobsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_rejected_total",
			Help:      "Job submissions rejected because a job was already running",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Finished jobs by outcome and whether the engine reported an error",
		}, []string{"outcome", "engine_error"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of finished jobs",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		jobRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_running",
			Help:      "1 while a job is running",
		}),
		readingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_total",
			Help:      "Readings recorded across all jobs",
		}),
		latestRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "latest_rate_per_minute",
			Help:      "Most recent rate reported by the sensing engine",
		}, []string{"metric"}),
		latestTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "latest_reading_timestamp_ms",
			Help:      "Engine timestamp of the most recent reading",
		}),
		uploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_size_bytes",
			Help:      "Size of stored video uploads",
			Buckets:   prometheus.ExponentialBuckets(1<<20, 4, 6),
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		httpBytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_response_bytes_total",
			Help:      "Bytes sent in HTTP responses by route",
		}, []string{"route", "method"}),
	}

	m.registry.MustRegister(
		m.jobsStarted, m.jobsRejected, m.jobsFinished, m.jobDuration, m.jobRunning,
		m.readingsTotal, m.latestRate, m.latestTime, m.uploadBytes,
		m.httpRequests, m.httpDuration, m.httpBytesSent,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// JobStarted records an accepted job
func (m *Metrics) JobStarted() {
	m.jobsStarted.Inc()
	m.jobRunning.Set(1)
}

// JobRejected records a submission refused while busy
func (m *Metrics) JobRejected() {
	m.jobsRejected.Inc()
}

// JobFinished records the end of a job
func (m *Metrics) JobFinished(outcome models.JobOutcome, failed bool, duration time.Duration) {
	engineErr := "false"
	if failed {
		engineErr = "true"
	}
	m.jobsFinished.WithLabelValues(string(outcome), engineErr).Inc()
	m.jobDuration.Observe(duration.Seconds())
	m.jobRunning.Set(0)
}

// ReadingRecorded updates reading counters and latest-value gauges
func (m *Metrics) ReadingRecorded(r models.Reading) {
	m.readingsTotal.Inc()
	m.latestTime.Set(float64(r.TimestampMs))
	if r.HeartRateBPM != nil {
		m.latestRate.WithLabelValues("heart_rate").Set(*r.HeartRateBPM)
	}
	if r.BreathingRateBPM != nil {
		m.latestRate.WithLabelValues("breathing_rate").Set(*r.BreathingRateBPM)
	}
}

// UploadStored records the size of a saved upload
func (m *Metrics) UploadStored(bytes int64) {
	m.uploadBytes.Observe(float64(bytes))
}

// CleanupTotals reports cumulative upload cleanup totals
type CleanupTotals func() (filesDeleted, bytesFreed int64)

// RegisterCleanup exposes upload cleanup totals, read at scrape time
func (m *Metrics) RegisterCleanup(totals CleanupTotals) {
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_deleted_total",
			Help:      "Expired uploads removed by the janitor",
		}, func() float64 {
			files, _ := totals()
			return float64(files)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_freed_total",
			Help:      "Bytes reclaimed by the janitor",
		}, func() float64 {
			_, freed := totals()
			return float64(freed)
		}),
	)
}

// Render gathers the registry in Prometheus text format
func (m *Metrics) Render() ([]byte, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Handler serves the registry in Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := m.Render()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
		w.Write(body)
	})
}
