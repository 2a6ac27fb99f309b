package spectralsubtraction

import (
	"fmt"
	"math/cmplx"
)

// Gain is the suppression gain of one bin:
//
//	max(beta, 1 - alpha*noise/max(magnitude, Epsilon))
//
// For alpha >= 0, noise >= 0 and beta in (0, 1] it is in [beta, 1].
func Gain(magnitude, noise, alpha, beta float64) float64 {
	return max(beta, 1-alpha*noise/max(magnitude, Epsilon))
}

// Subtract scales every bin of spectrum by its Gain in place. The phase of
// the bins is kept as is.
func Subtract(spectrum []complex128, noise []float64, alpha, beta float64) error {
	if len(spectrum) != len(noise) {
		return fmt.Errorf("the spectrum has %d bins, while the noise profile has %d", len(spectrum), len(noise))
	}
	for k, v := range spectrum {
		g := Gain(cmplx.Abs(v), noise[k], alpha, beta)
		spectrum[k] = complex(real(v)*g, imag(v)*g)
	}
	return nil
}
