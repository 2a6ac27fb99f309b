package audiofile

import (
	"fmt"
	"io"

	"github.com/xaionaro-go/audiodenoise/pkg/audio"
	"github.com/xaionaro-go/audiodenoise/pkg/audio/pcm"
)

func decodeInterleaved(format pcm.Format, data []byte) (*Audio, error) {
	frameSize := int(format.FrameSize())
	if frameSize == 0 {
		return nil, fmt.Errorf("invalid format: %#+v", format)
	}
	if len(data)%frameSize != 0 {
		return nil, fmt.Errorf("the data length %d is not a multiple of the frame size %d", len(data), frameSize)
	}
	sampleSize := int(format.PCMFormat.Size())
	samples := make([]float64, len(data)/sampleSize)
	for idx := range samples {
		samples[idx] = pcm.DecodeSample(format.PCMFormat, data[idx*sampleSize:])
	}
	return &Audio{
		Samples:    samples,
		Channels:   format.Channels,
		SampleRate: format.SampleRate,
	}, nil
}

// ReadRaw decodes headerless interleaved PCM of the given format.
func ReadRaw(r io.Reader, format pcm.Format) (*Audio, error) {
	if format.SampleRate == 0 {
		return nil, fmt.Errorf("the sample rate must be positive")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read the raw PCM: %w", err)
	}
	return decodeInterleaved(format, data)
}

// WriteRaw encodes signal as headerless mono PCM; integer formats are clipped.
func WriteRaw(w io.Writer, signal audio.Signal, pcmFormat audio.PCMFormat) error {
	data, err := pcm.FromSamples(pcmFormat, signal.Samples)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("unable to write the raw PCM: %w", err)
	}
	return nil
}
