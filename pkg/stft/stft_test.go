package stft

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHann(t *testing.T) {
	w := Hann(8)
	require.Len(t, w, 8)
	assert.Equal(t, 0.0, w[0])
	assert.InDelta(t, 1.0, w[4], 1e-15)
	assert.InDelta(t, w[1], w[7], 1e-15)
	assert.Nil(t, Hann(0))

	// periodic Hann at hop n/4 overlap-adds to a constant
	n := 64
	w = Hann(n)
	for pos := 0; pos < n/4; pos++ {
		var sum float64
		for k := 0; k < 4; k++ {
			sum += w[pos+k*n/4]
		}
		assert.InDelta(t, 2.0, sum, 1e-12)
	}
}

func TestFrame(t *testing.T) {
	buf := []float64{1, 2, 3, 4, 5}
	window := []float64{1, 1, 1, 1}

	f, err := Frame(buf, 0, window)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, f)

	f, err = Frame(buf, 3, window)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5, 0, 0}, f)

	f, err = Frame(buf, 10, window)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0}, f)

	_, err = Frame(buf, -1, window)
	require.Error(t, err)
	_, err = Frame(buf, 0, nil)
	require.Error(t, err)
	require.Error(t, FrameInto(make([]float64, 3), buf, 0, window))
}

func TestParams(t *testing.T) {
	p, err := NewParams(2048, 0)
	require.NoError(t, err)
	assert.Equal(t, 512, p.HopSize)
	assert.Equal(t, 1025, p.Bins())
	assert.Len(t, p.Window, 2048)

	assert.Equal(t, 0, p.FrameCount(0))
	assert.Equal(t, 1, p.FrameCount(1))
	assert.Equal(t, 1, p.FrameCount(512))
	assert.Equal(t, 2, p.FrameCount(513))

	_, err = NewParams(0, 0)
	require.Error(t, err)
	_, err = NewParams(256, 512)
	require.Error(t, err)
}

func TestAdaptFFTSize(t *testing.T) {
	assert.Equal(t, 2048, AdaptFFTSize(2048, 44100))
	assert.Equal(t, 2048, AdaptFFTSize(2048, 2048))
	assert.Equal(t, 256, AdaptFFTSize(2048, 500))
	assert.Equal(t, 1024, AdaptFFTSize(2048, 2047))
	assert.Equal(t, MinFFTSize, AdaptFFTSize(2048, 100))
	assert.Equal(t, MinFFTSize, AdaptFFTSize(2048, 10))

	assert.Equal(t, 0, LargestPowerOfTwo(0))
	assert.Equal(t, 1, LargestPowerOfTwo(1))
	assert.Equal(t, 512, LargestPowerOfTwo(1000))
	assert.True(t, IsPowerOfTwo(64))
	assert.False(t, IsPowerOfTwo(96))
	assert.False(t, IsPowerOfTwo(0))
}

func TestBackend(t *testing.T) {
	var b Backend
	require.NoError(t, b.Set("fourier"))
	assert.Equal(t, BackendFourier, b)
	require.NoError(t, b.Set("Go-DSP"))
	assert.Equal(t, BackendGoDSP, b)
	require.Error(t, b.Set("fftw"))

	_, err := NewTransformer(BackendFourier, 96)
	require.Error(t, err)
	_, err = NewTransformer(BackendUndefined, 64)
	require.Error(t, err)
	tr, err := NewTransformer(BackendGoDSP, 96)
	require.NoError(t, err)
	assert.Equal(t, 96, tr.Size())
}

func randomFrame(rng *rand.Rand, n int) []float64 {
	frame := make([]float64, n)
	for i := range frame {
		frame[i] = rng.Float64()*2 - 1
	}
	return frame
}

func TestTransformer(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, backend := range []Backend{BackendGoDSP, BackendFourier} {
		t.Run(backend.String(), func(t *testing.T) {
			for _, size := range []int{64, 256, 2048} {
				tr, err := NewTransformer(backend, size)
				require.NoError(t, err)

				frame := randomFrame(rng, size)
				spectrum := make([]complex128, size/2+1)
				require.NoError(t, tr.Forward(spectrum, frame))

				var sum float64
				for _, v := range frame {
					sum += v
				}
				assert.InDelta(t, sum, real(spectrum[0]), 1e-9)
				assert.InDelta(t, 0, imag(spectrum[0]), 1e-9)

				restored := make([]float64, size)
				require.NoError(t, tr.Inverse(restored, spectrum))
				for i := range frame {
					assert.InDelta(t, frame[i], restored[i], 1e-9, "size %d, index %d", size, i)
				}

				require.Error(t, tr.Forward(spectrum, frame[1:]))
				require.Error(t, tr.Inverse(restored, spectrum[1:]))
			}
		})
	}
}

func TestTransformerBackendsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	size := 512
	a, err := NewTransformer(BackendGoDSP, size)
	require.NoError(t, err)
	b, err := NewTransformer(BackendFourier, size)
	require.NoError(t, err)

	frame := randomFrame(rng, size)
	sa := make([]complex128, size/2+1)
	sb := make([]complex128, size/2+1)
	require.NoError(t, a.Forward(sa, frame))
	require.NoError(t, b.Forward(sb, frame))
	for k := range sa {
		assert.InDelta(t, real(sa[k]), real(sb[k]), 1e-9, "bin %d", k)
		assert.InDelta(t, imag(sa[k]), imag(sb[k]), 1e-9, "bin %d", k)
	}
}

func overlapAdd(t *testing.T, signal []float64, p Params, norm Normalization) []float64 {
	tr, err := NewTransformer(BackendGoDSP, p.FFTSize)
	require.NoError(t, err)
	acc, err := NewAccumulator(len(signal)+p.FFTSize, norm)
	require.NoError(t, err)

	frame := make([]float64, p.FFTSize)
	spectrum := make([]complex128, p.Bins())
	for idx := 0; idx < p.FrameCount(len(signal)); idx++ {
		start := idx * p.HopSize
		require.NoError(t, FrameInto(frame, signal, start, p.Window))
		require.NoError(t, tr.Forward(spectrum, frame))
		require.NoError(t, tr.Inverse(frame, spectrum))
		require.NoError(t, acc.Add(start, frame, p.Window))
	}
	out, err := acc.Finalize(len(signal))
	require.NoError(t, err)
	return out
}

func TestAccumulatorSquaredWindowReconstructs(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	p, err := NewParams(256, 0)
	require.NoError(t, err)
	signal := randomFrame(rng, 3000)

	out := overlapAdd(t, signal, p, NormalizationSquaredWindow)
	require.Len(t, out, len(signal))
	// the first sample is covered only by the zero of the first window
	assert.Equal(t, 0.0, out[0])
	for i := 1; i < len(signal); i++ {
		assert.InDelta(t, signal[i], out[i], 1e-9, "index %d", i)
	}
}

func TestAccumulatorWindowGain(t *testing.T) {
	p, err := NewParams(256, 0)
	require.NoError(t, err)
	signal := make([]float64, 4096)
	for i := range signal {
		signal[i] = 0.5
	}

	out := overlapAdd(t, signal, p, NormalizationWindow)
	for i := p.FFTSize; i < len(signal)-p.FFTSize; i++ {
		assert.InDelta(t, 0.375, out[i], 1e-9, "index %d", i)
	}
}

func TestAccumulator(t *testing.T) {
	_, err := NewAccumulator(-1, NormalizationWindow)
	require.Error(t, err)
	_, err = NewAccumulator(10, NormalizationUndefined)
	require.Error(t, err)

	acc, err := NewAccumulator(3, NormalizationWindow)
	require.NoError(t, err)
	require.NoError(t, acc.Add(1, []float64{2, 2, 2, 2}, []float64{1, 1, 1, 1}))
	require.Error(t, acc.Add(0, []float64{1}, []float64{1, 1}))
	require.Error(t, acc.Add(-1, []float64{1}, []float64{1}))

	out, err := acc.Finalize(3)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2, 2}, out)
	assert.False(t, math.IsNaN(out[0]))

	_, err = acc.Finalize(4)
	require.Error(t, err)

	var n Normalization
	require.NoError(t, n.Set("squared-window"))
	assert.Equal(t, NormalizationSquaredWindow, n)
	require.Error(t, n.Set("none"))
}
