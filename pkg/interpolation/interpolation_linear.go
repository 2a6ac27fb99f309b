package interpolation

type linear struct{}

// NewLinear returns an Interpolator drawing a straight line between the
// last sample before the gap and the first sample after it.
func NewLinear() Interpolator {
	return &linear{}
}

func (*linear) Interpolate(before, after []float64, gapLen int) ([]float64, error) {
	result := make([]float64, gapLen)
	if len(before) == 0 || len(after) == 0 {
		return result, nil
	}
	v0 := before[len(before)-1]
	v1 := after[0]
	for i := 0; i < gapLen; i++ {
		t := float64(i+1) / float64(gapLen+1)
		result[i] = (1-t)*v0 + t*v1
	}
	return result, nil
}
