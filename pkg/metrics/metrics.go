// Package metrics holds the prometheus collectors of the denoiser.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiodenoise_runs_total",
		Help: "Total denoising runs started",
	})

	RunErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audiodenoise_run_errors_total",
		Help: "Failed denoising runs by error kind",
	}, []string{"kind"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "audiodenoise_stage_duration_seconds",
		Help:    "Per-stage latency",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	}, []string{"stage"})

	ChunksProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiodenoise_chunks_processed_total",
		Help: "Total signal chunks denoised",
	})

	FramesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiodenoise_frames_processed_total",
		Help: "Total STFT frames denoised",
	})
)

// Error kinds of RunErrors.
const (
	ErrorKindInputNotFound     = "input_not_found"
	ErrorKindInvalidInput      = "invalid_input"
	ErrorKindProcessingFailure = "processing_failure"
	ErrorKindIO                = "io"
	ErrorKindCanceled          = "canceled"
)
