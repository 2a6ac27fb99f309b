// Package interpolation synthesizes the samples of a gap from its context.
// The denoiser uses it to smooth the discontinuities left at chunk seams.
package interpolation

import (
	"fmt"
)

type Interpolator interface {
	Interpolate(before, after []float64, gapLen int) ([]float64, error)
}

// RepairSeam replaces gapLen samples centred on position with the
// interpolation from up to contextLen samples on each side of the gap.
// The gap is clipped to the signal bounds; nothing happens if no context
// remains on either side.
func RepairSeam(
	samples []float64,
	position int,
	gapLen int,
	contextLen int,
	interpolator Interpolator,
) error {
	if gapLen <= 0 {
		return fmt.Errorf("the gap length must be positive, got %d", gapLen)
	}
	if contextLen <= 0 {
		return fmt.Errorf("the context length must be positive, got %d", contextLen)
	}
	if position < 0 || position > len(samples) {
		return fmt.Errorf("the seam position %d is out of range [0, %d]", position, len(samples))
	}

	gapStart := max(position-gapLen/2, 0)
	gapEnd := min(gapStart+gapLen, len(samples))
	if gapStart == 0 || gapEnd == len(samples) {
		return nil
	}

	before := samples[max(gapStart-contextLen, 0):gapStart]
	after := samples[gapEnd:min(gapEnd+contextLen, len(samples))]
	filler, err := interpolator.Interpolate(before, after, gapEnd-gapStart)
	if err != nil {
		return fmt.Errorf("unable to interpolate the seam at %d: %w", position, err)
	}
	if len(filler) != gapEnd-gapStart {
		return fmt.Errorf("the interpolator returned %d samples instead of %d", len(filler), gapEnd-gapStart)
	}
	copy(samples[gapStart:gapEnd], filler)
	return nil
}
