// Package metrics - Prometheus instrumentation for the narration pipeline.
package metrics

import (
	"context"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Metrics holds the pipeline collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	FramesProcessed prometheus.Counter
	FramesDropped   prometheus.Counter
	FrameErrors     *prometheus.CounterVec
	Detections      *prometheus.CounterVec
	Narrations      *prometheus.CounterVec
	SpeechDropped   prometheus.Counter
	TrackedLabels   prometheus.Gauge
	InferenceTime   prometheus.Histogram

	MemoryUsage prometheus.Gauge
	CPUUsage    prometheus.Gauge
}

// New creates and registers the pipeline collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		FramesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "narrator_frames_processed_total",
			Help: "Total number of frames that completed the pipeline",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "narrator_frames_dropped_total",
			Help: "Total number of frames dropped because a frame was already in flight",
		}),
		FrameErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "narrator_frame_errors_total",
			Help: "Total number of frames that failed, by stage",
		}, []string{"stage"}),
		Detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "narrator_detections_total",
			Help: "Total number of detections after suppression, by label",
		}, []string{"label"}),
		Narrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "narrator_narrations_total",
			Help: "Total number of narrations emitted, by label",
		}, []string{"label"}),
		SpeechDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "narrator_speech_dropped_total",
			Help: "Total number of narrations dropped because the speech queue was full",
		}),
		TrackedLabels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "narrator_tracked_labels",
			Help: "Number of labels currently tracked",
		}),
		InferenceTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "narrator_inference_seconds",
			Help:    "Model inference latency",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		MemoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_usage_Megabytes",
			Help: "Memory usage in Megabytes",
		}),
		CPUUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cpu_usage_percent",
			Help: "CPU usage in percent",
		}),
	}

	m.Registry.MustRegister(
		m.FramesProcessed,
		m.FramesDropped,
		m.FrameErrors,
		m.Detections,
		m.Narrations,
		m.SpeechDropped,
		m.TrackedLabels,
		m.InferenceTime,
		m.MemoryUsage,
		m.CPUUsage,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveInference records one inference duration.
func (m *Metrics) ObserveInference(d time.Duration) {
	m.InferenceTime.Observe(d.Seconds())
}

// SampleProcess updates the memory and CPU gauges for process p.
func (m *Metrics) SampleProcess(p *process.Process) error {
	mem, err := p.MemoryInfo()
	if err != nil {
		return err
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return err
	}
	m.MemoryUsage.Set(float64(mem.RSS / 1024 / 1024))
	m.CPUUsage.Set(math.Round(cpu*100) / 100)
	return nil
}

// StartProcessMonitor samples this process every interval until ctx is done.
func (m *Metrics) StartProcessMonitor(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn("process metrics disabled", zap.Error(err))
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.SampleProcess(p); err != nil {
				logger.Debug("failed to sample process metrics", zap.Error(err))
			}
		}
	}
}
