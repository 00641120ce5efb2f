// Package metrics exposes dictation session metrics for Prometheus.
package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/chaz8081/rose/internal/transcribe"
)

// Session outcomes.
const (
	OutcomeText  = "text"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// Metrics contains all Prometheus metrics for the dictation pipeline.
type Metrics struct {
	// Session metrics
	Sessions          *prometheus.CounterVec
	RecordingDuration prometheus.Histogram
	SessionDuration   prometheus.Histogram
	FallbackSessions  prometheus.Counter
	DeliveryFailures  prometheus.Counter

	// Attempt metrics
	Attempts          prometheus.Counter
	DegenerateAttempt prometheus.Counter
	BestScore         prometheus.Histogram
	BestTemperature   prometheus.Histogram

	// Model metrics
	ModelLoaded       prometheus.Gauge
	ModelLoads        *prometheus.CounterVec
	ModelLoadDuration prometheus.Histogram
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Sessions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rose_sessions_total",
			Help: "Dictation sessions by outcome and empty reason",
		}, []string{"outcome", "reason"}),
		RecordingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rose_recording_duration_seconds",
			Help:    "Length of captured clips",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 0.25s to 32s
		}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rose_transcription_duration_seconds",
			Help:    "Time from clip hand-off to final text",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		FallbackSessions: f.NewCounter(prometheus.CounterOpts{
			Name: "rose_fallback_sessions_total",
			Help: "Sessions that used the permissive conditioning path",
		}),
		DeliveryFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "rose_delivery_failures_total",
			Help: "Transcripts that could not be delivered to the active application",
		}),

		Attempts: f.NewCounter(prometheus.CounterOpts{
			Name: "rose_attempts_total",
			Help: "Recognition attempts run",
		}),
		DegenerateAttempt: f.NewCounter(prometheus.CounterOpts{
			Name: "rose_attempts_degenerate_total",
			Help: "Attempts that failed or produced no scorable tokens",
		}),
		BestScore: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rose_best_score",
			Help:    "Score of the selected attempt",
			Buckets: prometheus.LinearBuckets(-2, 0.2, 11), // -2.0 to 0.0
		}),
		BestTemperature: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rose_best_temperature",
			Help:    "Temperature of the selected attempt",
			Buckets: prometheus.LinearBuckets(0, 0.2, 10), // 0.0 to 1.8
		}),

		ModelLoaded: f.NewGauge(prometheus.GaugeOpts{
			Name: "rose_model_loaded",
			Help: "1 while an acoustic model is resident",
		}),
		ModelLoads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rose_model_loads_total",
			Help: "Model load attempts by result",
		}, []string{"result"}),
		ModelLoadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rose_model_load_duration_seconds",
			Help:    "Time spent loading models",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
}

// ObserveSession records a finished transcription.
func (m *Metrics) ObserveSession(res transcribe.Result, clipSeconds float64) {
	if m == nil {
		return
	}
	m.RecordingDuration.Observe(clipSeconds)
	m.SessionDuration.Observe(res.Duration.Seconds())
	if res.Fallback {
		m.FallbackSessions.Inc()
	}

	m.Attempts.Add(float64(len(res.Attempts)))
	for _, a := range res.Attempts {
		if math.IsInf(a.AvgLogprob, -1) {
			m.DegenerateAttempt.Inc()
		}
	}
	if len(res.Attempts) > 0 && !math.IsInf(res.Best.Score, 0) && !math.IsNaN(res.Best.Score) {
		m.BestScore.Observe(res.Best.Score)
		m.BestTemperature.Observe(float64(res.Best.Temperature))
	}

	if res.Empty || res.Text == "" {
		m.Sessions.WithLabelValues(OutcomeEmpty, res.Reason).Inc()
		return
	}
	m.Sessions.WithLabelValues(OutcomeText, "").Inc()
}

// ObserveError records a session aborted by an error.
func (m *Metrics) ObserveError() {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(OutcomeError, "").Inc()
}

// ObserveModelLoad records a model load attempt.
func (m *Metrics) ObserveModelLoad(seconds float64, err error) {
	if m == nil {
		return
	}
	m.ModelLoadDuration.Observe(seconds)
	if err != nil {
		m.ModelLoads.WithLabelValues("error").Inc()
		return
	}
	m.ModelLoads.WithLabelValues("ok").Inc()
	m.ModelLoaded.Set(1)
}

// ObserveModelUnload marks the model as released.
func (m *Metrics) ObserveModelUnload() {
	if m == nil {
		return
	}
	m.ModelLoaded.Set(0)
}
