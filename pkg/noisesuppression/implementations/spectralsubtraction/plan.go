package spectralsubtraction

import (
	"fmt"
	"time"

	"github.com/xaionaro-go/audiodenoise/pkg/audio"
	"github.com/xaionaro-go/audiodenoise/pkg/stft"
)

// Span is a half-open range [Start, End) of sample indexes.
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int {
	return s.End - s.Start
}

// Plan is the frame layout of a run over a signal of a known length.
type Plan struct {
	Length     int
	SampleRate audio.SampleRate

	// AdaptedFFTSize is the configured FFT size fitted into the signal length.
	AdaptedFFTSize int

	// NoiseReferenceLength is the amount of leading samples the noise
	// profile is estimated from.
	NoiseReferenceLength int

	// Params are the effective frame parameters: AdaptedFFTSize, further
	// reduced if the noise reference is shorter than it.
	Params stft.Params

	// ChunkLength is a multiple of Params.HopSize, or Length if the signal
	// is processed as a whole.
	ChunkLength int
}

func samplesForDuration(d time.Duration, sampleRate audio.SampleRate) int {
	return int(int64(d) * int64(sampleRate) / int64(time.Second))
}

func NewPlan(length int, sampleRate audio.SampleRate, cfg Config) (Plan, error) {
	if length <= 0 {
		return Plan{}, fmt.Errorf("the signal length must be positive, got %d", length)
	}
	if sampleRate == 0 {
		return Plan{}, fmt.Errorf("the sample rate must be positive")
	}

	plan := Plan{
		Length:         length,
		SampleRate:     sampleRate,
		AdaptedFFTSize: stft.AdaptFFTSize(cfg.FFTSize, length),
		NoiseReferenceLength: min(
			samplesForDuration(cfg.NoiseSampleDuration, sampleRate),
			int(float64(length)*cfg.NoiseReferenceMaxFraction),
		),
	}

	fftSize := plan.AdaptedFFTSize
	if plan.NoiseReferenceLength < fftSize {
		fftSize = max(stft.LargestPowerOfTwo(plan.NoiseReferenceLength), MinFFTSize)
	}
	hopSize := cfg.HopLength
	if hopSize > fftSize {
		hopSize = 0
	}
	params, err := stft.NewParams(fftSize, hopSize)
	if err != nil {
		return Plan{}, fmt.Errorf("unable to build the frame parameters: %w", err)
	}
	plan.Params = params

	plan.ChunkLength = length
	if cfg.ChunkDuration > 0 {
		hop := params.HopSize
		chunkLength := samplesForDuration(cfg.ChunkDuration, sampleRate) / hop * hop
		minChunkLength := (params.FFTSize + hop - 1) / hop * hop
		chunkLength = max(chunkLength, minChunkLength)
		if chunkLength < length {
			plan.ChunkLength = chunkLength
		}
	}
	return plan, nil
}

// Chunks returns the consecutive spans the signal is processed in.
func (p Plan) Chunks() []Span {
	if p.ChunkLength <= 0 {
		return nil
	}
	spans := make([]Span, 0, (p.Length+p.ChunkLength-1)/p.ChunkLength)
	for start := 0; start < p.Length; start += p.ChunkLength {
		spans = append(spans, Span{
			Start: start,
			End:   min(start+p.ChunkLength, p.Length),
		})
	}
	return spans
}

// FrameCount is the total amount of frames over all the chunks.
func (p Plan) FrameCount() int {
	var count int
	for _, span := range p.Chunks() {
		count += p.Params.FrameCount(span.Len())
	}
	return count
}
