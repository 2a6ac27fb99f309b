package pcm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/xaionaro-go/audiodenoise/pkg/audio"
)

// ToSamples decodes interleaved PCM bytes into mono float64 samples,
// averaging the channels.
func ToSamples(
	format Format,
	data []byte,
) ([]float64, error) {
	frameSize := int(format.FrameSize())
	if frameSize == 0 {
		return nil, fmt.Errorf("invalid format: %#+v", format)
	}
	if len(data)%frameSize != 0 {
		return nil, fmt.Errorf("the data length %d is not a multiple of the frame size %d", len(data), frameSize)
	}

	r, err := NewDownmixReader(format, bytes.NewReader(data), audio.PCMFormatFloat64LE)
	if err != nil {
		return nil, err
	}

	numSamples := len(data) / frameSize
	out := make([]byte, numSamples*8)
	n, err := io.ReadFull(r, out)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("unable to downmix: %w", err)
	}

	samples := make([]float64, n/8)
	for i := range samples {
		samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(out[i*8:]))
	}
	return samples, nil
}

// FromSamples encodes mono samples into PCM bytes.
func FromSamples(
	pcmFormat audio.PCMFormat,
	samples []float64,
) ([]byte, error) {
	sampleSize := int(pcmFormat.Size())
	if sampleSize == 0 {
		return nil, fmt.Errorf("unsupported PCM format: %v", pcmFormat)
	}
	out := make([]byte, len(samples)*sampleSize)
	for idx, v := range samples {
		EncodeSample(pcmFormat, out[idx*sampleSize:], v)
	}
	return out, nil
}
