package spectralsubtraction

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audiodenoise/pkg/audio"
	"github.com/xaionaro-go/audiodenoise/pkg/metrics"
	"github.com/xaionaro-go/audiodenoise/pkg/progress"
)

const (
	progressPreprocessed   = 30
	progressProfile        = 35
	progressSubtractionEnd = 80
)

// ValidateSignal returns ErrInvalidInput if the signal cannot be denoised.
func ValidateSignal(signal audio.Signal) error {
	if signal.SampleRate == 0 {
		return ErrInvalidInput{Reason: "the sample rate must be positive"}
	}
	if len(signal.Samples) < MinInputSamples {
		return errTooShort(len(signal.Samples))
	}
	return checkFinite(signal.Samples)
}

func checkFinite(samples []float64) error {
	for idx, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidInput{Reason: fmt.Sprintf("the sample #%d is not a finite number: %v", idx, v)}
		}
	}
	return nil
}

func asMonotonic(handler progress.Handler) *progress.Monotonic {
	if handler == nil {
		handler = progress.NewWriter(os.Stdout, os.Stderr)
	}
	if m, ok := handler.(*progress.Monotonic); ok {
		return m
	}
	return progress.NewMonotonic(handler)
}

// Denoise suppresses the noise profile of the leading segment of signal
// from the whole signal. The result has the same length and sample rate.
//
// Progress is reported to handler from "loading" 25-30 to "processing" 80;
// if handler is nil it is written to stdout in the line protocol of
// progress.Writer.
//
// A long signal is processed in chunks of cfg.ChunkDuration with the same
// globally estimated noise profile; no overlap is kept across chunk
// boundaries, so the samples within FFTSize of a boundary differ from a
// non-chunked run (see Config.SeamRepair).
func Denoise(
	ctx context.Context,
	signal audio.Signal,
	cfg Config,
	handler progress.Handler,
) (_ret audio.Signal, _err error) {
	logger.Tracef(ctx, "Denoise, len:%d", len(signal.Samples))
	defer func() { logger.Tracef(ctx, "/Denoise, len:%d: %v", len(signal.Samples), _err) }()

	if err := cfg.Validate(); err != nil {
		return audio.Signal{}, ErrInvalidInput{Reason: "invalid config", Err: err}
	}
	if err := ValidateSignal(signal); err != nil {
		return audio.Signal{}, err
	}
	h := asMonotonic(handler)

	plan, err := NewPlan(len(signal.Samples), signal.SampleRate, cfg)
	if err != nil {
		return audio.Signal{}, ErrInvalidInput{Reason: "unable to plan the frames", Err: err}
	}
	logger.Debugf(ctx, "plan: %#+v", plan)
	if plan.AdaptedFFTSize != cfg.FFTSize {
		progress.Report(ctx, h, progress.StageLoading, 25, "Adjusting FFT window size for audio length...")
		logger.Debugf(ctx, "the FFT size is adapted from %d to %d", cfg.FFTSize, plan.AdaptedFFTSize)
	}
	progress.Report(ctx, h, progress.StageLoading, progressPreprocessed, "Audio preprocessing complete")
	progress.Report(ctx, h, progress.StageProcessing, progressPreprocessed, "Applying noise reduction algorithm...")

	proc, err := newProcessor(plan.Params, cfg)
	if err != nil {
		return audio.Signal{}, ErrProcessingFailure{Err: err}
	}
	if err := proc.estimateProfile(signal.Samples[:plan.NoiseReferenceLength]); err != nil {
		return audio.Signal{}, ErrProcessingFailure{Err: fmt.Errorf("unable to estimate the noise profile: %w", err)}
	}
	progress.Report(ctx, h, progress.StageProcessing, progressProfile, fmt.Sprintf(
		"Noise profile estimated (%d bins, fft_size=%d)", proc.profile.Bins(), proc.profile.FFTSize,
	))

	chunks := plan.Chunks()
	totalFrames := plan.FrameCount()
	framesDone := 0
	output := make([]float64, plan.Length)
	for chunkIdx, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return audio.Signal{}, err
		}
		logger.Tracef(ctx, "chunk %d/%d: [%d, %d)", chunkIdx+1, len(chunks), chunk.Start, chunk.End)
		result, err := proc.processSegment(ctx, signal.Samples[chunk.Start:chunk.End], func(count int) {
			framesDone += count
			progress.Report(ctx, h, progress.StageProcessing,
				progress.Scale(progressProfile, progressSubtractionEnd, float64(framesDone)/float64(totalFrames)),
				fmt.Sprintf("Processing chunk %d/%d (%d/%d frames)", chunkIdx+1, len(chunks), framesDone, totalFrames),
			)
		})
		if err != nil {
			if ctx.Err() != nil {
				return audio.Signal{}, ctx.Err()
			}
			return audio.Signal{}, ErrProcessingFailure{Err: fmt.Errorf("unable to process chunk %d: %w", chunkIdx, err)}
		}
		copy(output[chunk.Start:chunk.End], result)
		metrics.ChunksProcessed.Inc()
	}

	if err := proc.repairSeams(ctx, output, chunks); err != nil {
		return audio.Signal{}, ErrProcessingFailure{Err: fmt.Errorf("unable to repair the chunk seams: %w", err)}
	}

	progress.Report(ctx, h, progress.StageProcessing, progressSubtractionEnd, "Noise reduction complete")
	return audio.Signal{
		Samples:    output,
		SampleRate: signal.SampleRate,
	}, nil
}

// DenoiseFrames is Denoise of multi-channel frames (frames[i][channel]),
// which are first reduced to mono by the channel mean.
func DenoiseFrames(
	ctx context.Context,
	frames [][]float64,
	sampleRate audio.SampleRate,
	cfg Config,
	handler progress.Handler,
) (audio.Signal, error) {
	mono, err := audio.DownmixFrames(frames)
	if err != nil {
		return audio.Signal{}, ErrInvalidInput{Reason: "unable to reduce the frames to mono", Err: err}
	}
	return Denoise(ctx, audio.Signal{Samples: mono, SampleRate: sampleRate}, cfg, handler)
}
