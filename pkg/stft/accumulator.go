package stft

import (
	"fmt"
	"strings"
)

// Normalization selects the window energy that the overlap-add sum is
// divided by.
type Normalization uint

const (
	NormalizationUndefined = Normalization(iota)

	// NormalizationWindow accumulates the plain synthesis window. With a Hann
	// window and hop FFTSize/4 the steady-state gain is 0.75 relative to the
	// input.
	NormalizationWindow

	// NormalizationSquaredWindow accumulates the squared window, which makes
	// analysis followed by synthesis an exact reconstruction.
	NormalizationSquaredWindow

	EndOfNormalization
)

func (n Normalization) String() string {
	switch n {
	case NormalizationUndefined:
		return "undefined"
	case NormalizationWindow:
		return "window"
	case NormalizationSquaredWindow:
		return "squared-window"
	default:
		return fmt.Sprintf("unknown_normalization_%d", uint(n))
	}
}

// Set implements pflag.Value.
func (n *Normalization) Set(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	for v := NormalizationUndefined + 1; v < EndOfNormalization; v++ {
		if v.String() == s {
			*n = v
			return nil
		}
	}
	return fmt.Errorf("unknown normalization '%s'", s)
}

// Type implements pflag.Value.
func (n *Normalization) Type() string {
	return "normalization"
}

// Accumulator is the overlap-add buffer of a synthesized signal.
type Accumulator struct {
	Samples       []float64
	Energy        []float64
	Normalization Normalization
}

func NewAccumulator(length int, normalization Normalization) (*Accumulator, error) {
	if length < 0 {
		return nil, fmt.Errorf("the length must not be negative, got %d", length)
	}
	switch normalization {
	case NormalizationWindow, NormalizationSquaredWindow:
	default:
		return nil, fmt.Errorf("unknown normalization: %v", normalization)
	}
	return &Accumulator{
		Samples:       make([]float64, length),
		Energy:        make([]float64, length),
		Normalization: normalization,
	}, nil
}

// Add multiplies frame by the synthesis window and adds it at offset.
// The part exceeding the buffer is dropped.
func (a *Accumulator) Add(offset int, frame []float64, window []float64) error {
	if len(frame) != len(window) {
		return fmt.Errorf("the frame length %d does not match the window length %d", len(frame), len(window))
	}
	if offset < 0 {
		return fmt.Errorf("the offset must not be negative, got %d", offset)
	}
	end := min(offset+len(frame), len(a.Samples))
	for pos := offset; pos < end; pos++ {
		w := window[pos-offset]
		a.Samples[pos] += frame[pos-offset] * w
		if a.Normalization == NormalizationSquaredWindow {
			a.Energy[pos] += w * w
		} else {
			a.Energy[pos] += w
		}
	}
	return nil
}

// Finalize returns the first length samples divided by the accumulated
// energy floored at Epsilon.
func (a *Accumulator) Finalize(length int) ([]float64, error) {
	if length < 0 || length > len(a.Samples) {
		return nil, fmt.Errorf("the length %d is out of range [0, %d]", length, len(a.Samples))
	}
	out := make([]float64, length)
	for pos := range out {
		out[pos] = a.Samples[pos] / max(a.Energy[pos], Epsilon)
	}
	return out, nil
}
