// Package stft implements the short-time Fourier transform plumbing of the
// denoiser: analysis framing with a Hann window, real FFT backends and the
// energy-normalized overlap-add synthesis.
package stft

import (
	"fmt"
	"math"
)

// Hann returns a periodic Hann window of length n:
//
//	w[i] = 0.5 * (1 - cos(2*pi*i/n))
//
// The periodic form (as opposed to the symmetric one with n-1 in the
// denominator) sums to a constant under overlap-add with hop n/4.
func Hann(n int) []float64 {
	if n <= 0 {
		return nil
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}
	return w
}

// Frame returns len(window) samples of buf starting at start, zero-padded
// on the right past the end of buf, multiplied by window.
func Frame(buf []float64, start int, window []float64) ([]float64, error) {
	dst := make([]float64, len(window))
	if err := FrameInto(dst, buf, start, window); err != nil {
		return nil, err
	}
	return dst, nil
}

// FrameInto is Frame writing into dst, which must be len(window) long.
func FrameInto(dst, buf []float64, start int, window []float64) error {
	size := len(window)
	if size <= 0 {
		return fmt.Errorf("the frame size must be positive, got %d", size)
	}
	if len(dst) != size {
		return fmt.Errorf("the destination length %d does not match the frame size %d", len(dst), size)
	}
	if start < 0 {
		return fmt.Errorf("the frame start must not be negative, got %d", start)
	}

	available := 0
	if start < len(buf) {
		available = min(size, len(buf)-start)
	}
	for i := 0; i < available; i++ {
		dst[i] = buf[start+i] * window[i]
	}
	for i := available; i < size; i++ {
		dst[i] = 0
	}
	return nil
}
