package interpolation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinear(t *testing.T) {
	result, err := NewLinear().Interpolate([]float64{0, 1}, []float64{4, 5}, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.75, 2.5, 3.25}, result)

	result, err = NewLinear().Interpolate(nil, []float64{4}, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, result)
}

func TestRepairSeam(t *testing.T) {
	t.Run("Middle", func(t *testing.T) {
		samples := []float64{0, 1, 2, 100, -100, 5, 6, 7}
		require.NoError(t, RepairSeam(samples, 4, 2, 2, NewLinear()))
		assert.InDeltaSlice(t, []float64{0, 1, 2, 3, 4, 5, 6, 7}, samples, 1e-12)
	})

	t.Run("AtTheEdge", func(t *testing.T) {
		samples := []float64{100, -100, 2, 3}
		require.NoError(t, RepairSeam(samples, 0, 2, 2, NewLinear()))
		assert.Equal(t, []float64{100, -100, 2, 3}, samples)
	})

	t.Run("InvalidArguments", func(t *testing.T) {
		samples := make([]float64, 8)
		require.Error(t, RepairSeam(samples, 4, 0, 2, NewLinear()))
		require.Error(t, RepairSeam(samples, 4, 2, 0, NewLinear()))
		require.Error(t, RepairSeam(samples, 9, 2, 2, NewLinear()))
	})
}
