package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownmixFrames(t *testing.T) {
	t.Run("stereo", func(t *testing.T) {
		mono, err := DownmixFrames([][]float64{{1, 1}, {-1, -1}, {1, 1}, {-1, -1}})
		require.NoError(t, err)
		assert.Equal(t, []float64{1, -1, 1, -1}, mono)
	})

	t.Run("mean", func(t *testing.T) {
		mono, err := DownmixFrames([][]float64{{1, 0, 0.5}, {0.3, 0.3, 0.3}})
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float64{0.5, 0.3}, mono, 1e-15)
	})

	t.Run("mono", func(t *testing.T) {
		mono, err := DownmixFrames([][]float64{{0.25}, {-0.5}})
		require.NoError(t, err)
		assert.Equal(t, []float64{0.25, -0.5}, mono)
	})

	t.Run("ragged", func(t *testing.T) {
		_, err := DownmixFrames([][]float64{{1, 1}, {1}})
		require.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		mono, err := DownmixFrames(nil)
		require.NoError(t, err)
		assert.Empty(t, mono)
	})
}

func TestDownmixInterleaved(t *testing.T) {
	mono, err := DownmixInterleaved([]float64{1, 1, -1, -1, 1, 1, -1, -1}, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -1, 1, -1}, mono)

	_, err = DownmixInterleaved([]float64{1, 1, 1}, 2)
	require.Error(t, err)

	_, err = DownmixInterleaved([]float64{1}, 0)
	require.Error(t, err)
}

func TestSignalDuration(t *testing.T) {
	s := Signal{Samples: make([]float64, 4410), SampleRate: 44100}
	assert.Equal(t, 100*time.Millisecond, s.Duration())
	assert.Zero(t, Signal{Samples: make([]float64, 10)}.Duration())
}
