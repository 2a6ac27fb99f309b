package stft

import (
	"fmt"
	"math/cmplx"
	"strings"

	"github.com/brettbuddin/fourier"
	"github.com/mjibson/go-dsp/fft"
)

// Transformer computes the real forward FFT of a frame (FFTSize/2+1 bins)
// and its inverse.
//
// Implementations keep scratch buffers and are not safe for concurrent use;
// create one Transformer per goroutine.
type Transformer interface {
	Size() int
	Forward(dst []complex128, frame []float64) error
	Inverse(dst []float64, spectrum []complex128) error
}

type Backend uint

const (
	BackendUndefined = Backend(iota)
	BackendGoDSP
	BackendFourier
	EndOfBackend
)

func (b Backend) String() string {
	switch b {
	case BackendUndefined:
		return "undefined"
	case BackendGoDSP:
		return "go-dsp"
	case BackendFourier:
		return "fourier"
	default:
		return fmt.Sprintf("unknown_backend_%d", uint(b))
	}
}

// Set implements pflag.Value.
func (b *Backend) Set(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	for v := BackendUndefined + 1; v < EndOfBackend; v++ {
		if v.String() == s {
			*b = v
			return nil
		}
	}
	return fmt.Errorf("unknown FFT backend '%s'", s)
}

// Type implements pflag.Value.
func (b *Backend) Type() string {
	return "fft-backend"
}

func NewTransformer(backend Backend, size int) (Transformer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("the FFT size must be positive, got %d", size)
	}
	switch backend {
	case BackendGoDSP:
		return &goDSPTransformer{
			size: size,
			full: make([]complex128, size),
		}, nil
	case BackendFourier:
		if !IsPowerOfTwo(size) {
			return nil, fmt.Errorf("backend %s supports only power-of-two sizes, got %d", backend, size)
		}
		return &fourierTransformer{
			size: size,
			buf:  make([]complex128, size),
		}, nil
	default:
		return nil, fmt.Errorf("unknown FFT backend: %v", backend)
	}
}

func checkForward(size int, dst []complex128, frame []float64) error {
	if len(frame) != size {
		return fmt.Errorf("the frame length %d does not match the FFT size %d", len(frame), size)
	}
	if len(dst) != size/2+1 {
		return fmt.Errorf("the spectrum length %d does not match the bins count %d", len(dst), size/2+1)
	}
	return nil
}

func checkInverse(size int, dst []float64, spectrum []complex128) error {
	if len(dst) != size {
		return fmt.Errorf("the frame length %d does not match the FFT size %d", len(dst), size)
	}
	if len(spectrum) != size/2+1 {
		return fmt.Errorf("the spectrum length %d does not match the bins count %d", len(spectrum), size/2+1)
	}
	return nil
}

// hermitian expands the non-negative bins of a real signal's spectrum into
// the full conjugate-symmetric spectrum.
func hermitian(dst []complex128, spectrum []complex128) {
	n := len(dst)
	half := n / 2
	dst[0] = complex(real(spectrum[0]), 0)
	for k := 1; k <= half; k++ {
		dst[k] = spectrum[k]
	}
	if n%2 == 0 {
		dst[half] = complex(real(spectrum[half]), 0)
	}
	for k := 1; k < (n+1)/2; k++ {
		dst[n-k] = cmplx.Conj(spectrum[k])
	}
}

type goDSPTransformer struct {
	size int
	full []complex128
}

func (t *goDSPTransformer) Size() int {
	return t.size
}

func (t *goDSPTransformer) Forward(dst []complex128, frame []float64) error {
	if err := checkForward(t.size, dst, frame); err != nil {
		return err
	}
	copy(dst, fft.FFTReal(frame)[:len(dst)])
	return nil
}

func (t *goDSPTransformer) Inverse(dst []float64, spectrum []complex128) error {
	if err := checkInverse(t.size, dst, spectrum); err != nil {
		return err
	}
	hermitian(t.full, spectrum)
	for i, v := range fft.IFFT(t.full) {
		dst[i] = real(v)
	}
	return nil
}

// fourierTransformer uses only the forward transform of brettbuddin/fourier;
// the inverse is computed as conj(FFT(conj(X)))/n.
type fourierTransformer struct {
	size int
	buf  []complex128
}

func (t *fourierTransformer) Size() int {
	return t.size
}

func (t *fourierTransformer) Forward(dst []complex128, frame []float64) error {
	if err := checkForward(t.size, dst, frame); err != nil {
		return err
	}
	for i, v := range frame {
		t.buf[i] = complex(v, 0)
	}
	if err := fourier.Forward(t.buf); err != nil {
		return fmt.Errorf("unable to compute the forward FFT: %w", err)
	}
	copy(dst, t.buf[:len(dst)])
	return nil
}

func (t *fourierTransformer) Inverse(dst []float64, spectrum []complex128) error {
	if err := checkInverse(t.size, dst, spectrum); err != nil {
		return err
	}
	hermitian(t.buf, spectrum)
	for i, v := range t.buf {
		t.buf[i] = cmplx.Conj(v)
	}
	if err := fourier.Forward(t.buf); err != nil {
		return fmt.Errorf("unable to compute the inverse FFT: %w", err)
	}
	n := float64(t.size)
	for i, v := range t.buf {
		dst[i] = real(v) / n
	}
	return nil
}
