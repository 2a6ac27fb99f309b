package spectralsubtraction

import (
	"fmt"
	"math/cmplx"

	"github.com/xaionaro-go/audiodenoise/pkg/stft"
)

// NoiseProfile is the average magnitude spectrum of the noise reference,
// one value per non-negative frequency bin. It is never modified after
// estimation.
type NoiseProfile struct {
	Magnitudes []float64
	FFTSize    int

	// Frames is the amount of averaged frames; zero means the profile is
	// a single zero-padded frame of a reference shorter than FFTSize.
	Frames int
}

func (p *NoiseProfile) Bins() int {
	return len(p.Magnitudes)
}

// EstimateNoiseProfile averages the magnitude spectra of all the whole
// frames fitting into reference. Every bin is floored at Epsilon.
func EstimateNoiseProfile(
	reference []float64,
	params stft.Params,
	transformer stft.Transformer,
) (*NoiseProfile, error) {
	if transformer.Size() != params.FFTSize {
		return nil, fmt.Errorf("the transformer size %d does not match the FFT size %d", transformer.Size(), params.FFTSize)
	}

	profile := &NoiseProfile{
		Magnitudes: make([]float64, params.Bins()),
		FFTSize:    params.FFTSize,
	}
	frame := make([]float64, params.FFTSize)
	spectrum := make([]complex128, params.Bins())
	addFrame := func(start int) error {
		if err := stft.FrameInto(frame, reference, start, params.Window); err != nil {
			return err
		}
		if err := transformer.Forward(spectrum, frame); err != nil {
			return err
		}
		for k, v := range spectrum {
			profile.Magnitudes[k] += cmplx.Abs(v)
		}
		return nil
	}

	for start := 0; start+params.FFTSize <= len(reference); start += params.HopSize {
		if err := addFrame(start); err != nil {
			return nil, fmt.Errorf("unable to analyze the noise frame at %d: %w", start, err)
		}
		profile.Frames++
	}
	if profile.Frames == 0 {
		if err := addFrame(0); err != nil {
			return nil, fmt.Errorf("unable to analyze the padded noise frame: %w", err)
		}
	}

	count := float64(max(profile.Frames, 1))
	for k, v := range profile.Magnitudes {
		profile.Magnitudes[k] = max(v/count, Epsilon)
	}
	return profile, nil
}
