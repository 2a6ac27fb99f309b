package spectralsubtraction

import (
	"context"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audiodenoise/pkg/audio"
	"github.com/xaionaro-go/audiodenoise/pkg/audio/pcm"
	"github.com/xaionaro-go/audiodenoise/pkg/noisesuppression"
	"github.com/xaionaro-go/audiodenoise/pkg/stft"
)

// SuppressorPCMFormat is the sample format a Suppressor consumes and produces.
const SuppressorPCMFormat = audio.PCMFormatFloat64LE

// Suppressor is the streaming form of Denoise: mono chunks of a fixed size
// are denoised one by one, all with the noise profile estimated from the
// beginning of the first chunk.
type Suppressor struct {
	Locker     sync.Mutex
	Config     Config
	SampleRate audio.SampleRate
	Plan       Plan

	processor *processor
	closed    bool
	ended     bool
}

var _ noisesuppression.PartialChunkNoiseSuppression = (*Suppressor)(nil)

// StreamChunkLength returns the amount of samples per Suppressor chunk:
// cfg.ChunkDuration (DefaultChunkDuration if zero) rounded up to a multiple
// of the hop size and to at least one FFT frame and MinInputSamples.
func StreamChunkLength(cfg Config, sampleRate audio.SampleRate) (int, error) {
	params, err := stft.NewParams(cfg.FFTSize, cfg.HopLength)
	if err != nil {
		return 0, err
	}
	duration := cfg.ChunkDuration
	if duration == 0 {
		duration = DefaultChunkDuration
	}
	length := max(samplesForDuration(duration, sampleRate), params.FFTSize, MinInputSamples)
	hop := params.HopSize
	return (length + hop - 1) / hop * hop, nil
}

func NewSuppressor(cfg Config, sampleRate audio.SampleRate) (*Suppressor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, ErrInvalidInput{Reason: "invalid config", Err: err}
	}
	if sampleRate == 0 {
		return nil, ErrInvalidInput{Reason: "the sample rate must be positive"}
	}
	chunkLength, err := StreamChunkLength(cfg, sampleRate)
	if err != nil {
		return nil, ErrInvalidInput{Reason: "unable to calculate the chunk length", Err: err}
	}

	planCfg := cfg
	planCfg.ChunkDuration = 0
	plan, err := NewPlan(chunkLength, sampleRate, planCfg)
	if err != nil {
		return nil, ErrInvalidInput{Reason: "unable to plan the frames", Err: err}
	}
	proc, err := newProcessor(plan.Params, cfg)
	if err != nil {
		return nil, err
	}
	return &Suppressor{
		Config:     cfg,
		SampleRate: sampleRate,
		Plan:       plan,
		processor:  proc,
	}, nil
}

func (s *Suppressor) Close() error {
	s.Locker.Lock()
	defer s.Locker.Unlock()
	if s.closed {
		return fmt.Errorf("already closed")
	}
	s.closed = true
	return nil
}

func (s *Suppressor) Encoding(context.Context) (audio.Encoding, error) {
	return audio.EncodingPCM{
		PCMFormat:  SuppressorPCMFormat,
		SampleRate: s.SampleRate,
	}, nil
}

func (s *Suppressor) Channels(context.Context) (audio.Channel, error) {
	return 1, nil
}

func (s *Suppressor) ChunkSize() uint {
	return uint(s.Plan.Length) * SuppressorPCMFormat.Size()
}

// NoiseProfile returns the profile estimated from the first chunk, or nil
// before the first chunk.
func (s *Suppressor) NoiseProfile() *NoiseProfile {
	s.Locker.Lock()
	defer s.Locker.Unlock()
	return s.processor.profile
}

// SuppressNoise denoises input, a multiple of ChunkSize bytes, and returns
// the ratio of the output energy to the input energy (1 for silence).
func (s *Suppressor) SuppressNoise(ctx context.Context, input []byte, output []byte) (_ret float64, _err error) {
	logger.Tracef(ctx, "SuppressNoise, len:%d", len(input))
	defer func() { logger.Tracef(ctx, "/SuppressNoise, len:%d: %v", len(input), _err) }()
	return s.suppressNoise(ctx, input, output, len(input))
}

// SuppressNoisePartial is SuppressNoise of the trailing chunk of a stream:
// input is one chunk, of which only the first length bytes are samples.
// The output past length is zeroed, and no chunks are accepted afterwards.
//
// If it is also the first chunk, the whole stream is shorter than a chunk
// and is denoised like Denoise of the same samples.
func (s *Suppressor) SuppressNoisePartial(
	ctx context.Context,
	input []byte,
	output []byte,
	length uint,
) (_ret float64, _err error) {
	logger.Tracef(ctx, "SuppressNoisePartial, len:%d/%d", length, len(input))
	defer func() { logger.Tracef(ctx, "/SuppressNoisePartial, len:%d/%d: %v", length, len(input), _err) }()

	if len(input) != int(s.ChunkSize()) {
		return 0, fmt.Errorf("a partial chunk must be exactly ChunkSize long: %d != %d", len(input), s.ChunkSize())
	}
	if length == 0 || length > s.ChunkSize() || length%SuppressorPCMFormat.Size() != 0 {
		return 0, fmt.Errorf("invalid length of the partial chunk: %d", length)
	}
	return s.suppressNoise(ctx, input, output, int(length))
}

func (s *Suppressor) suppressNoise(ctx context.Context, input []byte, output []byte, length int) (float64, error) {
	chunkSize := int(s.ChunkSize())
	if len(input) != len(output) {
		return 0, fmt.Errorf("lengths of input and output slices are not equal: %d != %d", len(input), len(output))
	}
	if len(input) == 0 || len(input)%chunkSize != 0 {
		return 0, fmt.Errorf("the size of the input is not a positive multiple of ChunkSize: %d %% %d != 0", len(input), chunkSize)
	}

	s.Locker.Lock()
	defer s.Locker.Unlock()
	if s.closed {
		return 0, fmt.Errorf("the suppressor is closed")
	}
	if s.ended {
		return 0, fmt.Errorf("the stream has already ended with a partial chunk")
	}

	var energyIn, energyOut float64
	for offset := 0; offset < len(input); offset += chunkSize {
		valid := min(chunkSize, max(length-offset, 0))
		clear(output[offset+valid : offset+chunkSize])
		if valid == 0 {
			continue
		}

		samples, err := pcm.ToSamples(pcm.Format{
			Channels:   1,
			SampleRate: s.SampleRate,
			PCMFormat:  SuppressorPCMFormat,
		}, input[offset:offset+valid])
		if err != nil {
			return 0, fmt.Errorf("unable to decode the chunk: %w", err)
		}
		result, err := s.processChunkLocked(ctx, samples)
		if err != nil {
			return 0, err
		}
		encoded, err := pcm.FromSamples(SuppressorPCMFormat, result)
		if err != nil {
			return 0, ErrProcessingFailure{Err: err}
		}
		copy(output[offset:offset+valid], encoded)
		if valid < chunkSize {
			s.ended = true
		}

		for idx := range samples {
			energyIn += samples[idx] * samples[idx]
			energyOut += result[idx] * result[idx]
		}
	}
	if energyIn == 0 {
		return 1, nil
	}
	return energyOut / energyIn, nil
}

// processChunkLocked denoises the samples of one chunk, estimating the
// noise profile first if it is the first one.
func (s *Suppressor) processChunkLocked(ctx context.Context, samples []float64) ([]float64, error) {
	switch {
	case s.processor.profile != nil:
		if err := checkFinite(samples); err != nil {
			return nil, err
		}
	case len(samples) < s.Plan.Length:
		if err := s.startShortStreamLocked(ctx, samples); err != nil {
			return nil, err
		}
	default:
		if err := ValidateSignal(audio.Signal{Samples: samples, SampleRate: s.SampleRate}); err != nil {
			return nil, err
		}
		if err := s.processor.estimateProfile(samples[:s.Plan.NoiseReferenceLength]); err != nil {
			return nil, ErrProcessingFailure{Err: fmt.Errorf("unable to estimate the noise profile: %w", err)}
		}
		logger.Debugf(ctx, "the noise profile is estimated from %d samples, %d frames", s.Plan.NoiseReferenceLength, s.processor.profile.Frames)
	}

	result, err := s.processor.processSegment(ctx, samples, nil)
	if err != nil {
		return nil, ErrProcessingFailure{Err: err}
	}
	return result, nil
}

// startShortStreamLocked replaces the processor with one planned for a
// stream that consists of samples only.
func (s *Suppressor) startShortStreamLocked(ctx context.Context, samples []float64) error {
	if err := ValidateSignal(audio.Signal{Samples: samples, SampleRate: s.SampleRate}); err != nil {
		return err
	}
	planCfg := s.Config
	planCfg.ChunkDuration = 0
	plan, err := NewPlan(len(samples), s.SampleRate, planCfg)
	if err != nil {
		return ErrInvalidInput{Reason: "unable to plan the frames", Err: err}
	}
	proc, err := newProcessor(plan.Params, s.Config)
	if err != nil {
		return ErrProcessingFailure{Err: err}
	}
	if err := proc.estimateProfile(samples[:plan.NoiseReferenceLength]); err != nil {
		return ErrProcessingFailure{Err: fmt.Errorf("unable to estimate the noise profile: %w", err)}
	}
	logger.Debugf(ctx, "the stream is shorter than a chunk: %d samples, fft_size=%d, noise reference %d samples", len(samples), plan.Params.FFTSize, plan.NoiseReferenceLength)
	s.processor = proc
	return nil
}
