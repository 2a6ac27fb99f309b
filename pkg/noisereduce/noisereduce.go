// Package noisereduce runs the spectral-subtraction denoiser over audio
// files and reports the run through the progress line protocol.
package noisereduce

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audiodenoise/pkg/audio"
	"github.com/xaionaro-go/audiodenoise/pkg/audio/audiofile"
	"github.com/xaionaro-go/audiodenoise/pkg/audio/pcm"
	"github.com/xaionaro-go/audiodenoise/pkg/metrics"
	"github.com/xaionaro-go/audiodenoise/pkg/noisesuppression/implementations/spectralsubtraction"
	"github.com/xaionaro-go/audiodenoise/pkg/progress"
)

type Options struct {
	// Progress receives the progress events; nil means the line protocol
	// on Stdout.
	Progress progress.Handler

	// Stdout receives "PROGRESS|" (if Progress is nil) and "RESULT_SAVED|"
	// lines; nil means os.Stdout.
	Stdout io.Writer

	// Stderr receives the "ERROR|" line; nil means os.Stderr.
	Stderr io.Writer

	// OutputBitDepth of the WAV output; zero means the bit depth of the
	// input, or audiofile.DefaultBitDepth if the input is not integer PCM.
	OutputBitDepth int

	// RawFormat, if set, declares the input to be headerless PCM of this
	// format; the output is then headerless mono PCM of the same PCMFormat.
	RawFormat *pcm.Format
}

type run struct {
	writer  *progress.Writer
	handler *progress.Monotonic
}

func newRun(opts Options) *run {
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	w := progress.NewWriter(stdout, stderr)
	var handler progress.Handler = w
	if opts.Progress != nil {
		handler = opts.Progress
	}
	return &run{
		writer:  w,
		handler: progress.NewMonotonic(handler),
	}
}

func (r *run) report(ctx context.Context, stage progress.Stage, value float64, message string) {
	progress.Report(ctx, r.handler, stage, value, message)
}

// fail publishes err as the single error notification of the run.
func (r *run) fail(ctx context.Context, err error) {
	metrics.RunErrors.WithLabelValues(ErrorKind(err)).Inc()
	message := ErrorMessage(err)
	logger.Errorf(ctx, "%s", message)
	last, _ := r.handler.Last()
	r.report(ctx, progress.StageError, last, message)
	r.writer.Error(ctx, message)
}

// ErrorKind returns the metrics.ErrorKind* label of err.
func ErrorKind(err error) string {
	var (
		notFound   ErrInputNotFound
		invalid    spectralsubtraction.ErrInvalidInput
		processing spectralsubtraction.ErrProcessingFailure
	)
	switch {
	case errors.As(err, &notFound):
		return metrics.ErrorKindInputNotFound
	case errors.As(err, &invalid):
		return metrics.ErrorKindInvalidInput
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.ErrorKindCanceled
	case errors.As(err, &processing):
		return metrics.ErrorKindProcessingFailure
	default:
		return metrics.ErrorKindIO
	}
}

// ErrorMessage returns the text of the "ERROR|" line of err: validation
// errors as they are, anything else prefixed with "Noise reduction failed".
func ErrorMessage(err error) string {
	var (
		notFound ErrInputNotFound
		invalid  spectralsubtraction.ErrInvalidInput
	)
	if errors.As(err, &notFound) || errors.As(err, &invalid) {
		return err.Error()
	}
	return fmt.Sprintf("%s: %v", failurePrefix, err)
}

func observeStage(stage progress.Stage, startedAt time.Time) {
	metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(startedAt).Seconds())
}

// CheckInput returns ErrInputNotFound if path is not an existing regular file.
func CheckInput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrInputNotFound{Path: path, Reason: ReasonNotFound}
		}
		return fmt.Errorf("unable to stat '%s': %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return ErrInputNotFound{Path: path, Reason: ReasonNotAFile}
	}
	return nil
}

// Run denoises the audio file at inputPath into outputPath.
//
// On success the last protocol line is "RESULT_SAVED|<outputPath>"; on
// failure exactly one "ERROR|<message>" line is written and the error is
// returned.
func Run(
	ctx context.Context,
	inputPath string,
	outputPath string,
	cfg spectralsubtraction.Config,
	opts Options,
) (_err error) {
	logger.Tracef(ctx, "Run: '%s' -> '%s'", inputPath, outputPath)
	defer func() { logger.Tracef(ctx, "/Run: '%s' -> '%s': %v", inputPath, outputPath, _err) }()

	metrics.RunsTotal.Inc()
	r := newRun(opts)
	defer func() {
		if _err != nil {
			r.fail(ctx, _err)
		}
	}()

	if err := CheckInput(inputPath); err != nil {
		return err
	}

	startedAt := time.Now()
	r.report(ctx, progress.StageLoading, 0, fmt.Sprintf("Loading audio from: %s", inputPath))
	input, err := r.load(ctx, inputPath, opts.RawFormat)
	if err != nil {
		return err
	}

	result, err := r.denoise(ctx, input, cfg, startedAt)
	if err != nil {
		return err
	}

	startedAt = time.Now()
	r.report(ctx, progress.StageSaving, 85, "Preparing output file...")
	r.report(ctx, progress.StageSaving, 90, fmt.Sprintf("Saving cleaned audio to: %s", outputPath))
	if err := save(ctx, outputPath, result, outputBitDepth(input, opts), opts.RawFormat); err != nil {
		return fmt.Errorf("unable to save the result: %w", err)
	}
	observeStage(progress.StageSaving, startedAt)

	r.report(ctx, progress.StageComplete, 100, fmt.Sprintf("Noise reduction complete: %s", outputPath))
	r.writer.ResultSaved(ctx, outputPath)
	return nil
}

// Process is Run of already decoded audio; nothing is saved.
func Process(
	ctx context.Context,
	input *audiofile.Audio,
	cfg spectralsubtraction.Config,
	opts Options,
) (_ret audio.Signal, _err error) {
	logger.Tracef(ctx, "Process")
	defer func() { logger.Tracef(ctx, "/Process: %v", _err) }()

	metrics.RunsTotal.Inc()
	r := newRun(opts)
	defer func() {
		if _err != nil {
			r.fail(ctx, _err)
		}
	}()

	if input == nil {
		return audio.Signal{}, spectralsubtraction.ErrInvalidInput{Reason: "no audio provided"}
	}
	r.report(ctx, progress.StageLoading, 0, "Loading audio from memory")
	result, err := r.denoise(ctx, input, cfg, time.Now())
	if err != nil {
		return audio.Signal{}, err
	}
	r.report(ctx, progress.StageComplete, 100, "Noise reduction complete")
	return result, nil
}

// load decodes the input; its failures are reported as I/O failures, not
// as invalid input.
func (r *run) load(ctx context.Context, path string, rawFormat *pcm.Format) (*audiofile.Audio, error) {
	if rawFormat == nil {
		a, err := audiofile.ReadFile(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("unable to load the audio: %w", err)
		}
		return a, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	defer f.Close()
	a, err := audiofile.ReadRaw(f, *rawFormat)
	if err != nil {
		return nil, fmt.Errorf("unable to load the raw audio: %w", err)
	}
	return a, nil
}

// denoise reports the "loading" 10-20 stages, and then runs the denoiser.
func (r *run) denoise(
	ctx context.Context,
	input *audiofile.Audio,
	cfg spectralsubtraction.Config,
	loadingStartedAt time.Time,
) (audio.Signal, error) {
	if input.Channels > 1 {
		r.report(ctx, progress.StageLoading, 10, fmt.Sprintf("Converting stereo (%d channels) to mono...", input.Channels))
	}
	signal, err := input.Mono()
	if err != nil {
		return audio.Signal{}, spectralsubtraction.ErrInvalidInput{Reason: "unable to reduce the audio to mono", Err: err}
	}
	r.report(ctx, progress.StageLoading, 20, fmt.Sprintf("Audio loaded: %d samples at %d Hz", len(signal.Samples), signal.SampleRate))
	observeStage(progress.StageLoading, loadingStartedAt)

	startedAt := time.Now()
	result, err := spectralsubtraction.Denoise(ctx, signal, cfg, r.handler)
	if err != nil {
		return audio.Signal{}, err
	}
	observeStage(progress.StageProcessing, startedAt)
	return result, nil
}

func outputBitDepth(input *audiofile.Audio, opts Options) int {
	switch {
	case opts.OutputBitDepth > 0:
		return opts.OutputBitDepth
	case audiofile.IsSupportedBitDepth(input.BitDepth):
		return input.BitDepth
	default:
		return audiofile.DefaultBitDepth
	}
}

func save(
	ctx context.Context,
	path string,
	signal audio.Signal,
	bitDepth int,
	rawFormat *pcm.Format,
) error {
	if rawFormat == nil {
		return audiofile.WriteFile(ctx, path, signal, bitDepth)
	}

	if err := audiofile.MkdirParent(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create '%s': %w", path, err)
	}
	if err := audiofile.WriteRaw(f, signal, rawFormat.PCMFormat); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
