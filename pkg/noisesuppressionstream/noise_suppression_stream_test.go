package noisesuppressionstream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/audiodenoise/pkg/audio"
	"github.com/xaionaro-go/audiodenoise/pkg/audio/pcm"
	"github.com/xaionaro-go/audiodenoise/pkg/noisesuppression"
	"github.com/xaionaro-go/audiodenoise/pkg/noisesuppression/implementations/spectralsubtraction"
	"github.com/xaionaro-go/audiodenoise/pkg/progress"
)

func randomBytes(seed int64, n int) []byte {
	rng := rand.New(rand.NewSource(seed))
	buf := make([]byte, n)
	rng.Read(buf)
	return buf
}

func newDummy() *noisesuppression.Dummy {
	return noisesuppression.NewDummy(audio.EncodingPCM{
		PCMFormat:  audio.PCMFormatFloat32LE,
		SampleRate: 48000,
	}, 1, 64)
}

func TestNoiseSuppressionStreamPassThrough(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for name, tc := range map[string]struct {
		input            []byte
		wrap             func(io.Reader) io.Reader
		inputBufferSize  uint
		outputBufferSize uint
	}{
		"Aligned": {
			input:            randomBytes(1, 64*100),
			wrap:             func(r io.Reader) io.Reader { return r },
			inputBufferSize:  4096,
			outputBufferSize: 4096,
		},
		"TrailingPartialChunk": {
			input:            randomBytes(2, 64*10+12),
			wrap:             func(r io.Reader) io.Reader { return r },
			inputBufferSize:  4096,
			outputBufferSize: 4096,
		},
		"OneByteReader": {
			input:            randomBytes(3, 1000),
			wrap:             iotest.OneByteReader,
			inputBufferSize:  128,
			outputBufferSize: 128,
		},
		"MinimalBuffers": {
			input:            randomBytes(4, 10000),
			wrap:             iotest.HalfReader,
			inputBufferSize:  64,
			outputBufferSize: 64,
		},
		"Empty": {
			input:            []byte{},
			wrap:             func(r io.Reader) io.Reader { return r },
			inputBufferSize:  64,
			outputBufferSize: 64,
		},
	} {
		t.Run(name, func(t *testing.T) {
			s, err := NewNoiseSuppressionStream(ctx, tc.wrap(bytes.NewReader(tc.input)), newDummy(), tc.inputBufferSize, tc.outputBufferSize)
			require.NoError(t, err)
			out, err := io.ReadAll(s)
			require.NoError(t, err)
			assert.Equal(t, tc.input, out)
		})
	}
}

func TestNoiseSuppressionStreamErrors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	t.Run("ReaderError", func(t *testing.T) {
		boom := errors.New("boom")
		s, err := NewNoiseSuppressionStream(ctx, iotest.ErrReader(boom), newDummy(), 64, 64)
		require.NoError(t, err)
		_, err = io.ReadAll(s)
		require.ErrorIs(t, err, boom)
	})

	t.Run("PartialFrame", func(t *testing.T) {
		s, err := NewNoiseSuppressionStream(ctx, bytes.NewReader(make([]byte, 65)), newDummy(), 64, 64)
		require.NoError(t, err)
		_, err = io.ReadAll(s)
		require.Error(t, err)
	})

	t.Run("InvalidSizes", func(t *testing.T) {
		_, err := NewNoiseSuppressionStream(ctx, bytes.NewReader(nil), newDummy(), 32, 64)
		require.Error(t, err)
		_, err = NewNoiseSuppressionStream(ctx, bytes.NewReader(nil), newDummy(), 64, 32)
		require.Error(t, err)
		dummy := newDummy()
		dummy.ChunkSizeValue = 0
		_, err = NewNoiseSuppressionStream(ctx, bytes.NewReader(nil), dummy, 64, 64)
		require.Error(t, err)
	})

	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(ctx)
		pr, pw := io.Pipe()
		defer pw.Close()
		s, err := NewNoiseSuppressionStream(ctx, pr, newDummy(), 64, 64)
		require.NoError(t, err)
		cancel()
		_, err = s.Read(make([]byte, 16))
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestNoiseSuppressionStreamSpectralSubtraction(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const sampleRate = audio.SampleRate(8000)
	cfg := spectralsubtraction.DefaultConfig()
	cfg.ChunkDuration = 250 * time.Millisecond

	rng := rand.New(rand.NewSource(5))
	samples := make([]float64, 2048*2+1024)
	for idx := range samples {
		samples[idx] = 0.05*(rng.Float64()*2-1) + 0.3*math.Sin(2*math.Pi*300*float64(idx)/float64(sampleRate))
	}
	input, err := pcm.FromSamples(spectralsubtraction.SuppressorPCMFormat, samples)
	require.NoError(t, err)

	streamed, err := spectralsubtraction.NewSuppressor(cfg, sampleRate)
	require.NoError(t, err)
	chunkSize := int(streamed.ChunkSize())
	require.Equal(t, 2048*8, chunkSize)

	s, err := NewNoiseSuppressionStream(ctx, bytes.NewReader(input), streamed, uint(chunkSize*2), uint(chunkSize))
	require.NoError(t, err)
	out, err := io.ReadAll(s)
	require.NoError(t, err)
	require.Len(t, out, len(input))

	direct, err := spectralsubtraction.NewSuppressor(cfg, sampleRate)
	require.NoError(t, err)
	var expected []byte
	for offset := 0; offset < len(input); offset += chunkSize {
		chunk := make([]byte, chunkSize)
		n := copy(chunk, input[offset:])
		result := make([]byte, chunkSize)
		if n < chunkSize {
			_, err = direct.SuppressNoisePartial(ctx, chunk, result, uint(n))
		} else {
			_, err = direct.SuppressNoise(ctx, chunk, result)
		}
		require.NoError(t, err)
		expected = append(expected, result[:n]...)
	}
	assert.Equal(t, expected, out)
}

func TestNoiseSuppressionStreamShorterThanChunk(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const sampleRate = audio.SampleRate(8000)
	cfg := spectralsubtraction.DefaultConfig()
	cfg.ChunkDuration = 250 * time.Millisecond

	t.Run("Denoised", func(t *testing.T) {
		rng := rand.New(rand.NewSource(6))
		samples := make([]float64, 1000)
		for idx := range samples {
			samples[idx] = 0.05*(rng.Float64()*2-1) + 0.3*math.Sin(2*math.Pi*300*float64(idx)/float64(sampleRate))
		}
		input, err := pcm.FromSamples(spectralsubtraction.SuppressorPCMFormat, samples)
		require.NoError(t, err)

		suppressor, err := spectralsubtraction.NewSuppressor(cfg, sampleRate)
		require.NoError(t, err)
		s, err := NewNoiseSuppressionStream(ctx, bytes.NewReader(input), suppressor, suppressor.ChunkSize(), suppressor.ChunkSize())
		require.NoError(t, err)
		out, err := io.ReadAll(s)
		require.NoError(t, err)
		require.Len(t, out, len(input))

		denoiseCfg := cfg
		denoiseCfg.ChunkDuration = 0
		plan, err := spectralsubtraction.NewPlan(len(samples), sampleRate, denoiseCfg)
		require.NoError(t, err)
		profile := suppressor.NoiseProfile()
		require.NotNil(t, profile)
		assert.Equal(t, plan.Params.FFTSize, profile.FFTSize)
		assert.LessOrEqual(t, plan.NoiseReferenceLength, len(samples)/4)

		expected, err := spectralsubtraction.Denoise(ctx, audio.Signal{Samples: samples, SampleRate: sampleRate}, denoiseCfg, progress.Discard)
		require.NoError(t, err)
		expectedBytes, err := pcm.FromSamples(spectralsubtraction.SuppressorPCMFormat, expected.Samples)
		require.NoError(t, err)
		assert.Equal(t, expectedBytes, out)
	})

	t.Run("TooShort", func(t *testing.T) {
		input := make([]byte, 50*8)
		suppressor, err := spectralsubtraction.NewSuppressor(cfg, sampleRate)
		require.NoError(t, err)
		s, err := NewNoiseSuppressionStream(ctx, bytes.NewReader(input), suppressor, suppressor.ChunkSize(), suppressor.ChunkSize())
		require.NoError(t, err)
		_, err = io.ReadAll(s)
		var errInvalid spectralsubtraction.ErrInvalidInput
		require.ErrorAs(t, err, &errInvalid)
		assert.Contains(t, err.Error(), "Audio file is too short (50 samples)")
		assert.Nil(t, suppressor.NoiseProfile())
	})
}
