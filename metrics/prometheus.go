package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Probe outcome labels.
const (
	OutcomeSuccess     = "success"
	OutcomeTimeout     = "timeout"
	OutcomeNegotiation = "negotiation_error"
	OutcomeCancelled   = "cancelled"
	OutcomeError       = "error"
)

// Metrics contains all Prometheus metrics for peerkit
type Metrics struct {
	registry *prometheus.Registry

	// Connectivity probe metrics
	ProbesTotal   *prometheus.CounterVec
	ProbeDuration prometheus.Histogram

	// Audio aggregation metrics
	AggregateRebuilds prometheus.Counter
	AggregateTracks   prometheus.Gauge
	PlaybackFailures  prometheus.Counter

	// Voice activity metrics
	SpeakingTransitions *prometheus.CounterVec

	// Codec worker metrics
	CodecJobs        *prometheus.CounterVec
	CodecJobDuration *prometheus.HistogramVec
	CodecBytes       *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ProbesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peerkit_ice_probes_total",
			Help: "Total number of ICE server probes by outcome",
		}, []string{"outcome"}),
		ProbeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "peerkit_ice_probe_duration_seconds",
			Help:    "Time taken for an ICE server probe to finalize",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),

		AggregateRebuilds: factory.NewCounter(prometheus.CounterOpts{
			Name: "peerkit_audio_aggregate_rebuilds_total",
			Help: "Total number of times the combined peer audio stream was replaced",
		}),
		AggregateTracks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "peerkit_audio_aggregate_tracks",
			Help: "Current number of audio tracks in the combined peer stream",
		}),
		PlaybackFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "peerkit_audio_playback_failures_total",
			Help: "Total number of failed playback attempts",
		}),

		SpeakingTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peerkit_voice_speaking_transitions_total",
			Help: "Total number of speaking state changes",
		}, []string{"state"}),

		CodecJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peerkit_codec_jobs_total",
			Help: "Total number of codec worker jobs by worker and outcome",
		}, []string{"worker", "outcome"}),
		CodecJobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "peerkit_codec_job_duration_seconds",
			Help:    "Time taken by a codec worker to handle one job",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"worker"}),
		CodecBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peerkit_codec_output_bytes_total",
			Help: "Total number of bytes produced by codec workers",
		}, []string{"worker"}),
	}
}

// Registry returns the registry holding every peerkit metric.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler serving the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveProbe records a finished probe.
func (m *Metrics) ObserveProbe(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ProbesTotal.WithLabelValues(outcome).Inc()
	m.ProbeDuration.Observe(elapsed.Seconds())
}

// ObserveAggregate records a replacement of the combined audio stream.
func (m *Metrics) ObserveAggregate(tracks int) {
	if m == nil {
		return
	}
	m.AggregateRebuilds.Inc()
	m.AggregateTracks.Set(float64(tracks))
}

// ObservePlaybackFailure records a refused playback attempt.
func (m *Metrics) ObservePlaybackFailure() {
	if m == nil {
		return
	}
	m.PlaybackFailures.Inc()
}

// ObserveSpeaking records a speaking state change.
func (m *Metrics) ObserveSpeaking(speaking bool) {
	if m == nil {
		return
	}
	state := "silent"
	if speaking {
		state = "speaking"
	}
	m.SpeakingTransitions.WithLabelValues(state).Inc()
}

// ObserveCodecJob records one codec worker job.
func (m *Metrics) ObserveCodecJob(worker string, err error, outputBytes int, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.CodecJobs.WithLabelValues(worker, outcome).Inc()
	m.CodecJobDuration.WithLabelValues(worker).Observe(elapsed.Seconds())
	if outputBytes > 0 {
		m.CodecBytes.WithLabelValues(worker).Add(float64(outputBytes))
	}
}
