package audio

import (
	"fmt"
	"time"
)

// Signal is a mono sequence of floating-point samples.
type Signal struct {
	Samples    []float64
	SampleRate SampleRate
}

func (s Signal) Duration() time.Duration {
	if s.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(s.Samples)) * time.Second / time.Duration(s.SampleRate)
}

// DownmixFrames reduces multi-channel frames (frames[i][ch]) to mono by the
// arithmetic mean across channels.
//
// The reduction is lossy and irreversible: the per-channel content is not
// recoverable from the result.
func DownmixFrames(frames [][]float64) ([]float64, error) {
	if len(frames) == 0 {
		return []float64{}, nil
	}
	channels := len(frames[0])
	if channels == 0 {
		return nil, fmt.Errorf("frame 0 has no channels")
	}
	result := make([]float64, len(frames))
	for idx, frame := range frames {
		if len(frame) != channels {
			return nil, fmt.Errorf("frame %d has %d channels, while frame 0 has %d", idx, len(frame), channels)
		}
		if channels == 1 {
			result[idx] = frame[0]
			continue
		}
		var sum float64
		for _, v := range frame {
			sum += v
		}
		result[idx] = sum / float64(channels)
	}
	return result, nil
}

// DownmixInterleaved is DownmixFrames for interleaved samples (L R L R ...).
func DownmixInterleaved(data []float64, channels Channel) ([]float64, error) {
	if channels == 0 {
		return nil, fmt.Errorf("the amount of channels must be positive")
	}
	if len(data)%int(channels) != 0 {
		return nil, fmt.Errorf("the amount of samples (%d) is not a multiple of the amount of channels (%d)", len(data), channels)
	}
	if channels == 1 {
		result := make([]float64, len(data))
		copy(result, data)
		return result, nil
	}
	result := make([]float64, len(data)/int(channels))
	for idx := range result {
		var sum float64
		for _, v := range data[idx*int(channels) : (idx+1)*int(channels)] {
			sum += v
		}
		result[idx] = sum / float64(channels)
	}
	return result, nil
}
