// Package metrics provides Prometheus metrics for tourcast recording runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels stay low-cardinality: no run ids or step ids.
var (
	// RunsTotal counts finished runs by mode and result.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tourcast_runs_total",
		Help: "Total number of recording runs, by capture mode and result.",
	}, []string{"mode", "result"})

	// PhaseDuration tracks wall-clock duration of each pipeline phase.
	PhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tourcast_phase_duration_seconds",
		Help:    "Wall-clock duration of pipeline phases.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2.0, 12), // 0.5s to ~17min
	}, []string{"phase"})

	// StepAttemptsTotal counts step attempts by outcome.
	StepAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tourcast_step_attempts_total",
		Help: "Total number of step attempts, by outcome (ok, timeout, assertion, error).",
	}, []string{"outcome"})

	// NarrationSeconds accumulates synthesized narration audio.
	NarrationSeconds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tourcast_narration_seconds_total",
		Help: "Total seconds of narration audio produced, by synthesizer backend.",
	}, []string{"backend"})

	// ClipsNormalizedTotal counts clip normalizations by clip kind and result.
	ClipsNormalizedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tourcast_clips_normalized_total",
		Help: "Total number of clip normalizations, by clip kind and result.",
	}, []string{"kind", "result"})

	// OutputDurationSeconds records the duration of published videos.
	OutputDurationSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tourcast_output_duration_seconds",
		Help: "Duration of the last published video.",
	})

	// ProcTerminateTotal counts signals sent to managed process groups.
	ProcTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tourcast_proc_terminate_total",
		Help: "Total number of termination signals sent to child process groups, by signal and result.",
	}, []string{"signal", "result"})
)

// IncProcTerminate records a termination signal delivery attempt.
func IncProcTerminate(signal, result string) {
	ProcTerminateTotal.WithLabelValues(signal, result).Inc()
}

// RecordAttempt records the outcome of one step attempt.
func RecordAttempt(outcome string) {
	StepAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordRun records a finished run.
func RecordRun(mode, result string) {
	RunsTotal.WithLabelValues(mode, result).Inc()
}

// ObservePhase records how long a pipeline phase took.
func ObservePhase(phase string, seconds float64) {
	PhaseDuration.WithLabelValues(phase).Observe(seconds)
}

// RecordNormalization records the result of normalizing one clip.
func RecordNormalization(kind string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	ClipsNormalizedTotal.WithLabelValues(kind, result).Inc()
}

// AddNarration adds synthesized narration seconds for a backend.
func AddNarration(backend string, seconds float64) {
	NarrationSeconds.WithLabelValues(backend).Add(seconds)
}
