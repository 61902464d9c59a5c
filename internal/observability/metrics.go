package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the thumbnail service.
type Metrics struct {
	GenerationsTotal   *prometheus.CounterVec
	GenerationsActive  prometheus.Gauge
	StageDuration      *prometheus.HistogramVec
	BackgroundAttempts *prometheus.CounterVec
	ExportQuality      prometheus.Histogram
	ArtifactBytes      prometheus.Histogram

	gatherer prometheus.Gatherer
}

// NewMetrics creates and registers all metrics on reg.
// A nil reg uses the default Prometheus registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}
	factory := promauto.With(registerer)

	return &Metrics{
		GenerationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thumbapp_generations_total",
				Help: "Thumbnail generations by result kind",
			},
			[]string{"result"},
		),

		GenerationsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "thumbapp_generations_active",
				Help: "Generations currently in flight",
			},
		),

		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "thumbapp_stage_duration_seconds",
				Help:    "Pipeline stage latency",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),

		BackgroundAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thumbapp_background_attempts_total",
				Help: "Outbound image generation calls",
			},
			[]string{"size", "outcome"},
		),

		ExportQuality: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "thumbapp_export_quality",
				Help:    "JPEG quality that met the size ceiling",
				Buckets: []float64{60, 70, 76, 80, 84, 88, 92, 96, 100},
			},
		),

		ArtifactBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "thumbapp_artifact_bytes",
				Help:    "Size of persisted thumbnails",
				Buckets: prometheus.ExponentialBuckets(50_000, 2, 7),
			},
		),

		gatherer: gatherer,
	}
}

// RecordGenerationStart increments the in-flight gauge.
func (m *Metrics) RecordGenerationStart() {
	m.GenerationsActive.Inc()
}

// RecordGenerationDone records the final result kind of one generation.
func (m *Metrics) RecordGenerationDone(result string) {
	m.GenerationsActive.Dec()
	m.GenerationsTotal.WithLabelValues(result).Inc()
}

// RecordStage observes a stage duration.
func (m *Metrics) RecordStage(stage string, seconds float64) {
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordBackgroundAttempt counts one provider call.
func (m *Metrics) RecordBackgroundAttempt(size, outcome string) {
	m.BackgroundAttempts.WithLabelValues(size, outcome).Inc()
}

// RecordExport observes the chosen quality and the artifact size.
func (m *Metrics) RecordExport(quality, sizeBytes int) {
	m.ExportQuality.Observe(float64(quality))
	m.ArtifactBytes.Observe(float64(sizeBytes))
}

// Handler exposes the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
