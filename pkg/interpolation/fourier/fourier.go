package fourier

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/brettbuddin/fourier"
	"github.com/xaionaro-go/audiodenoise/pkg/interpolation"
	"github.com/xaionaro-go/audiodenoise/pkg/stft"
)

const (
	DefaultMaxWindowSize = 1024

	// MinContextSamples is the amount of samples required on each side of
	// the gap; with less context the gap is filled linearly.
	MinContextSamples = 4

	// DefaultSieveSensitivity is how many times a spectral peak must exceed
	// the mean magnitude to be extended into the gap.
	DefaultSieveSensitivity = 2.5
)

// Interpolator extends the tonal components found on both sides of a gap
// into it (a "spectral sieve") and cross-fades the two extensions.
type Interpolator struct {
	MaxWindowSize    int
	SieveSensitivity float64
	fallback         interpolation.Interpolator
}

var _ interpolation.Interpolator = (*Interpolator)(nil)

func New() *Interpolator {
	return &Interpolator{
		MaxWindowSize:    DefaultMaxWindowSize,
		SieveSensitivity: DefaultSieveSensitivity,
		fallback:         interpolation.NewLinear(),
	}
}

// Interpolate works in four steps:
//
//  1. The largest power-of-two windows (up to MaxWindowSize) adjacent to the
//     gap are transformed with a forward FFT.
//  2. Bins that are local maxima over SieveSensitivity times the mean
//     magnitude are kept as tonal components.
//  3. The components of the left window are continued forward and those of
//     the right window backward, over the gap.
//  4. Both continuations are blended with the cubic weight 3t^2-2t^3 and
//     shifted by a linear trend so that the result meets the boundary
//     samples without a jump.
func (i *Interpolator) Interpolate(before, after []float64, gapLen int) ([]float64, error) {
	if gapLen <= 0 {
		return nil, fmt.Errorf("the gap length must be positive, got %d", gapLen)
	}
	if len(before) < MinContextSamples || len(after) < MinContextSamples {
		return i.fallback.Interpolate(before, after, gapLen)
	}

	n := stft.LargestPowerOfTwo(min(len(before), len(after), max(i.MaxWindowSize, MinContextSamples)))
	windowBefore := before[len(before)-n:]
	windowAfter := after[:n]

	forward, err := i.extend(windowBefore, gapLen, true)
	if err != nil {
		return nil, fmt.Errorf("unable to extend the left context: %w", err)
	}
	backward, err := i.extend(windowAfter, gapLen, false)
	if err != nil {
		return nil, fmt.Errorf("unable to extend the right context: %w", err)
	}

	// forward[0] and backward[gapLen] model the boundary samples themselves
	startDiff := forward[0] - windowBefore[n-1]
	endDiff := backward[gapLen] - windowAfter[0]
	result := make([]float64, gapLen)
	for idx := range result {
		t := float64(idx+1) / float64(gapLen+1)
		w := t * t * (3 - 2*t)
		result[idx] = (1-w)*(forward[idx+1]-startDiff) + w*(backward[idx]-endDiff)
	}
	return result, nil
}

type component struct {
	bin       int
	amplitude float64
	phase     float64
}

func (i *Interpolator) extend(samples []float64, gapLen int, forward bool) ([]float64, error) {
	n := len(samples)
	coeffs := make([]complex128, n)
	for idx, v := range samples {
		coeffs[idx] = complex(v, 0)
	}
	if err := fourier.Forward(coeffs); err != nil {
		return nil, err
	}

	magnitudes := make([]float64, n)
	var mean float64
	for idx, c := range coeffs {
		magnitudes[idx] = cmplx.Abs(c)
		mean += magnitudes[idx]
	}
	threshold := mean / float64(n) * i.SieveSensitivity

	var components []component
	for k := 1; k < n/2; k++ {
		if magnitudes[k] > threshold && magnitudes[k] > magnitudes[k-1] && magnitudes[k] > magnitudes[k+1] {
			components = append(components, component{
				bin:       k,
				amplitude: 2 * magnitudes[k] / float64(n),
				phase:     cmplx.Phase(coeffs[k]),
			})
		}
	}

	// gapLen+1 values: forward covers positions n-1..n+gapLen-1 of the
	// window, backward covers -gapLen..0.
	dc := real(coeffs[0]) / float64(n)
	result := make([]float64, gapLen+1)
	for idx := range result {
		pos := float64(idx - gapLen)
		if forward {
			pos = float64(n - 1 + idx)
		}
		sum := dc
		for _, c := range components {
			sum += c.amplitude * math.Cos(2*math.Pi*float64(c.bin)*pos/float64(n)+c.phase)
		}
		result[idx] = sum
	}
	return result, nil
}
