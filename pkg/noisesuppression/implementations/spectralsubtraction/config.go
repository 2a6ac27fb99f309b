package spectralsubtraction

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/audiodenoise/pkg/stft"
)

const (
	DefaultFFTSize                   = 2048
	DefaultNoiseSampleDuration       = 100 * time.Millisecond
	DefaultNoiseReferenceMaxFraction = 0.25
	DefaultAlpha                     = 2.0
	DefaultBeta                      = 0.01
	DefaultChunkDuration             = 10 * time.Second
	DefaultWorkers                   = 1
	DefaultSeamRepairSamples         = 64
	DefaultNormalization             = stft.NormalizationWindow
	DefaultFFTBackend                = stft.BackendGoDSP
	DefaultSeamRepair                = SeamRepairNone

	// MinInputSamples is the shortest accepted signal.
	MinInputSamples = 100

	MinFFTSize = stft.MinFFTSize
	Epsilon    = stft.Epsilon
)

type SeamRepair uint

const (
	SeamRepairUndefined = SeamRepair(iota)
	SeamRepairNone
	SeamRepairLinear
	SeamRepairSpectral
	EndOfSeamRepair
)

func (r SeamRepair) String() string {
	switch r {
	case SeamRepairUndefined:
		return "undefined"
	case SeamRepairNone:
		return "none"
	case SeamRepairLinear:
		return "linear"
	case SeamRepairSpectral:
		return "spectral"
	default:
		return fmt.Sprintf("unknown_seam_repair_%d", uint(r))
	}
}

// Set implements pflag.Value.
func (r *SeamRepair) Set(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	for v := SeamRepairUndefined + 1; v < EndOfSeamRepair; v++ {
		if v.String() == s {
			*r = v
			return nil
		}
	}
	return fmt.Errorf("unknown seam repair method '%s'", s)
}

// Type implements pflag.Value.
func (r *SeamRepair) Type() string {
	return "seam-repair"
}

// Config is the complete set of tunables of one denoising run.
type Config struct {
	// FFTSize is the requested analysis window size; it is reduced for
	// signals (and noise references) shorter than it.
	FFTSize int

	// HopLength is the stride between frames; zero means FFTSize/4.
	HopLength int

	// NoiseSampleDuration is the length of the leading segment presumed to
	// contain only noise.
	NoiseSampleDuration time.Duration

	// NoiseReferenceMaxFraction caps the noise reference relative to the
	// signal length.
	NoiseReferenceMaxFraction float64

	// Alpha is the oversubtraction factor; zero disables the subtraction.
	Alpha float64

	// Beta is the spectral floor of the gain, in (0, 1].
	Beta float64

	Normalization stft.Normalization

	// ChunkDuration bounds the span processed with one output accumulator;
	// zero processes the whole signal at once.
	ChunkDuration time.Duration

	// Workers is the amount of goroutines computing frames concurrently.
	Workers int

	FFTBackend stft.Backend

	SeamRepair        SeamRepair
	SeamRepairSamples int
}

func DefaultConfig() Config {
	return Config{
		FFTSize:                   DefaultFFTSize,
		NoiseSampleDuration:       DefaultNoiseSampleDuration,
		NoiseReferenceMaxFraction: DefaultNoiseReferenceMaxFraction,
		Alpha:                     DefaultAlpha,
		Beta:                      DefaultBeta,
		Normalization:             DefaultNormalization,
		ChunkDuration:             DefaultChunkDuration,
		Workers:                   DefaultWorkers,
		FFTBackend:                DefaultFFTBackend,
		SeamRepair:                DefaultSeamRepair,
		SeamRepairSamples:         DefaultSeamRepairSamples,
	}
}

// Validate returns all the violations found in the config at once.
func (cfg Config) Validate() error {
	var mErr *multierror.Error
	if cfg.FFTSize < MinFFTSize {
		mErr = multierror.Append(mErr, fmt.Errorf("the FFT size must be at least %d, got %d", MinFFTSize, cfg.FFTSize))
	}
	if cfg.HopLength < 0 {
		mErr = multierror.Append(mErr, fmt.Errorf("the hop length must not be negative, got %d", cfg.HopLength))
	}
	if cfg.HopLength > cfg.FFTSize {
		mErr = multierror.Append(mErr, fmt.Errorf("the hop length %d exceeds the FFT size %d", cfg.HopLength, cfg.FFTSize))
	}
	if cfg.NoiseSampleDuration < 0 {
		mErr = multierror.Append(mErr, fmt.Errorf("the noise sample duration must not be negative, got %v", cfg.NoiseSampleDuration))
	}
	if !(cfg.NoiseReferenceMaxFraction > 0 && cfg.NoiseReferenceMaxFraction <= 1) {
		mErr = multierror.Append(mErr, fmt.Errorf("the noise reference fraction must be in (0, 1], got %v", cfg.NoiseReferenceMaxFraction))
	}
	if !(cfg.Alpha >= 0) {
		mErr = multierror.Append(mErr, fmt.Errorf("alpha must not be negative, got %v", cfg.Alpha))
	}
	if !(cfg.Beta > 0 && cfg.Beta <= 1) {
		mErr = multierror.Append(mErr, fmt.Errorf("beta must be in (0, 1], got %v", cfg.Beta))
	}
	switch cfg.Normalization {
	case stft.NormalizationWindow, stft.NormalizationSquaredWindow:
	default:
		mErr = multierror.Append(mErr, fmt.Errorf("unknown normalization: %v", cfg.Normalization))
	}
	if cfg.ChunkDuration < 0 {
		mErr = multierror.Append(mErr, fmt.Errorf("the chunk duration must not be negative, got %v", cfg.ChunkDuration))
	}
	if cfg.Workers < 1 {
		mErr = multierror.Append(mErr, fmt.Errorf("the amount of workers must be positive, got %d", cfg.Workers))
	}
	switch cfg.FFTBackend {
	case stft.BackendGoDSP:
	case stft.BackendFourier:
		if !stft.IsPowerOfTwo(cfg.FFTSize) {
			mErr = multierror.Append(mErr, fmt.Errorf("FFT backend %s requires a power-of-two FFT size, got %d", cfg.FFTBackend, cfg.FFTSize))
		}
	default:
		mErr = multierror.Append(mErr, fmt.Errorf("unknown FFT backend: %v", cfg.FFTBackend))
	}
	switch cfg.SeamRepair {
	case SeamRepairNone:
	case SeamRepairLinear, SeamRepairSpectral:
		if cfg.SeamRepairSamples <= 0 {
			mErr = multierror.Append(mErr, fmt.Errorf("the seam repair length must be positive, got %d", cfg.SeamRepairSamples))
		}
	default:
		mErr = multierror.Append(mErr, fmt.Errorf("unknown seam repair method: %v", cfg.SeamRepair))
	}
	return mErr.ErrorOrNil()
}
