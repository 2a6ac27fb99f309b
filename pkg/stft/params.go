package stft

import (
	"fmt"
)

const (
	// MinFFTSize is the floor of FFT-size adaptation.
	MinFFTSize = 64

	// Epsilon floors divisors: noise profile bins, frame magnitudes and
	// the overlap-add window energy.
	Epsilon = 1e-10
)

// Params are the frame parameters of one run.
type Params struct {
	FFTSize int
	HopSize int
	Window  []float64
}

// NewParams builds frame parameters with a Hann window of fftSize samples.
// A non-positive hopSize means fftSize/4.
func NewParams(fftSize, hopSize int) (Params, error) {
	if fftSize <= 0 {
		return Params{}, fmt.Errorf("the FFT size must be positive, got %d", fftSize)
	}
	if hopSize <= 0 {
		hopSize = max(fftSize/4, 1)
	}
	if hopSize > fftSize {
		return Params{}, fmt.Errorf("the hop size %d exceeds the FFT size %d", hopSize, fftSize)
	}
	return Params{
		FFTSize: fftSize,
		HopSize: hopSize,
		Window:  Hann(fftSize),
	}, nil
}

// Bins returns the amount of non-negative frequency bins.
func (p Params) Bins() int {
	return p.FFTSize/2 + 1
}

// FrameCount returns the amount of frames starting inside a signal of the
// given length when advancing by HopSize.
func (p Params) FrameCount(length int) int {
	if length <= 0 {
		return 0
	}
	return 1 + (length-1)/p.HopSize
}

// LargestPowerOfTwo returns the largest power of two not exceeding n, or 0 if n < 1.
func LargestPowerOfTwo(n int) int {
	if n < 1 {
		return 0
	}
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}

func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// AdaptFFTSize returns fftSize if it fits into length samples, otherwise the
// largest power of two not exceeding length, floored at MinFFTSize.
func AdaptFFTSize(fftSize, length int) int {
	if fftSize <= length {
		return fftSize
	}
	return max(LargestPowerOfTwo(length), MinFFTSize)
}
