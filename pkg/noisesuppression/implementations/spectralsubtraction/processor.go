package spectralsubtraction

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/audiodenoise/pkg/interpolation"
	"github.com/xaionaro-go/audiodenoise/pkg/interpolation/fourier"
	"github.com/xaionaro-go/audiodenoise/pkg/metrics"
	"github.com/xaionaro-go/audiodenoise/pkg/stft"
	"github.com/xaionaro-go/observability"
)

const (
	// frameGroupSize is the amount of frames computed between two
	// accumulation passes (and progress reports).
	frameGroupSize = 256

	seamContextSamples = fourier.DefaultMaxWindowSize
)

type frameWorker struct {
	transformer stft.Transformer
	frame       []float64
	spectrum    []complex128
}

// processor denoises segments of a signal with a fixed noise profile.
// It is not safe for concurrent use.
type processor struct {
	params       stft.Params
	profile      *NoiseProfile
	alpha        float64
	beta         float64
	norm         stft.Normalization
	workers      []*frameWorker
	outputs      [][]float64
	interpolator interpolation.Interpolator
	seamLength   int
}

func newProcessor(params stft.Params, cfg Config) (*processor, error) {
	p := &processor{
		params:     params,
		alpha:      cfg.Alpha,
		beta:       cfg.Beta,
		norm:       cfg.Normalization,
		seamLength: cfg.SeamRepairSamples,
	}
	for i := 0; i < max(cfg.Workers, 1); i++ {
		transformer, err := stft.NewTransformer(cfg.FFTBackend, params.FFTSize)
		if err != nil {
			return nil, fmt.Errorf("unable to initialize the FFT: %w", err)
		}
		p.workers = append(p.workers, &frameWorker{
			transformer: transformer,
			frame:       make([]float64, params.FFTSize),
			spectrum:    make([]complex128, params.Bins()),
		})
	}
	p.outputs = make([][]float64, frameGroupSize)
	for i := range p.outputs {
		p.outputs[i] = make([]float64, params.FFTSize)
	}

	switch cfg.SeamRepair {
	case SeamRepairNone:
	case SeamRepairLinear:
		p.interpolator = interpolation.NewLinear()
	case SeamRepairSpectral:
		p.interpolator = fourier.New()
	default:
		return nil, fmt.Errorf("unknown seam repair method: %v", cfg.SeamRepair)
	}
	return p, nil
}

func (p *processor) estimateProfile(reference []float64) error {
	profile, err := EstimateNoiseProfile(reference, p.params, p.workers[0].transformer)
	if err != nil {
		return err
	}
	p.profile = profile
	return nil
}

func (w *frameWorker) processFrame(
	p *processor,
	segment []float64,
	start int,
	dst []float64,
) error {
	if err := stft.FrameInto(w.frame, segment, start, p.params.Window); err != nil {
		return fmt.Errorf("unable to slice the frame: %w", err)
	}
	if err := w.transformer.Forward(w.spectrum, w.frame); err != nil {
		return fmt.Errorf("unable to compute the spectrum: %w", err)
	}
	if err := Subtract(w.spectrum, p.profile.Magnitudes, p.alpha, p.beta); err != nil {
		return fmt.Errorf("unable to subtract the noise: %w", err)
	}
	if err := w.transformer.Inverse(dst, w.spectrum); err != nil {
		return fmt.Errorf("unable to synthesize the frame: %w", err)
	}
	return nil
}

// processFrameGroup computes frames [first, first+count) of segment into
// p.outputs[:count], distributing them over the workers.
func (p *processor) processFrameGroup(
	ctx context.Context,
	segment []float64,
	first int,
	count int,
) error {
	run := func(w *frameWorker, idx int) (_err error) {
		defer func() {
			if r := recover(); r != nil {
				_err = fmt.Errorf("panic in frame %d: %v\n%s", first+idx, r, debug.Stack())
			}
		}()
		if err := w.processFrame(p, segment, (first+idx)*p.params.HopSize, p.outputs[idx]); err != nil {
			return fmt.Errorf("frame %d: %w", first+idx, err)
		}
		return nil
	}

	if len(p.workers) == 1 || count == 1 {
		for idx := 0; idx < count; idx++ {
			if err := run(p.workers[0], idx); err != nil {
				return err
			}
		}
		return nil
	}

	var (
		wg     sync.WaitGroup
		locker sync.Mutex
		mErr   *multierror.Error
	)
	for workerIdx, worker := range p.workers {
		wg.Add(1)
		observability.Go(ctx, func() {
			defer wg.Done()
			for idx := workerIdx; idx < count; idx += len(p.workers) {
				if err := run(worker, idx); err != nil {
					locker.Lock()
					mErr = multierror.Append(mErr, err)
					locker.Unlock()
					return
				}
			}
		})
	}
	wg.Wait()
	return mErr.ErrorOrNil()
}

// processSegment denoises segment as a standalone signal: frames start
// every HopSize samples from its beginning and are zero-padded past its
// end. onFrames is called after every frame group with the amount of
// frames completed in the group.
func (p *processor) processSegment(
	ctx context.Context,
	segment []float64,
	onFrames func(count int),
) ([]float64, error) {
	if p.profile == nil {
		return nil, fmt.Errorf("the noise profile is not estimated")
	}
	acc, err := stft.NewAccumulator(len(segment), p.norm)
	if err != nil {
		return nil, err
	}

	frameCount := p.params.FrameCount(len(segment))
	for first := 0; first < frameCount; first += frameGroupSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		count := min(frameGroupSize, frameCount-first)
		if err := p.processFrameGroup(ctx, segment, first, count); err != nil {
			return nil, err
		}
		for idx := 0; idx < count; idx++ {
			if err := acc.Add((first+idx)*p.params.HopSize, p.outputs[idx], p.params.Window); err != nil {
				return nil, fmt.Errorf("unable to overlap-add frame %d: %w", first+idx, err)
			}
		}
		metrics.FramesProcessed.Add(float64(count))
		if onFrames != nil {
			onFrames(count)
		}
	}

	return acc.Finalize(len(segment))
}

// repairSeams re-synthesizes the samples around every chunk start except
// the first one.
func (p *processor) repairSeams(ctx context.Context, samples []float64, chunks []Span) error {
	if p.interpolator == nil {
		return nil
	}
	for _, chunk := range chunks[min(1, len(chunks)):] {
		logger.Tracef(ctx, "repairing the seam at %d", chunk.Start)
		if err := interpolation.RepairSeam(samples, chunk.Start, p.seamLength, seamContextSamples, p.interpolator); err != nil {
			return err
		}
	}
	return nil
}
