package pcm

import (
	"fmt"
	"io"
	"sync"

	"github.com/xaionaro-go/audiodenoise/pkg/audio"
)

type Format struct {
	Channels   audio.Channel
	SampleRate audio.SampleRate
	PCMFormat  audio.PCMFormat
}

// FrameSize returns the size of one interleaved frame (one sample of every channel).
func (f Format) FrameSize() uint {
	return uint(f.Channels) * f.PCMFormat.Size()
}

// DownmixReader reads interleaved PCM frames and returns mono PCM in the
// output format, each output sample being the arithmetic mean of the
// channels of one input frame.
type DownmixReader struct {
	inReader  io.Reader
	inFormat  Format
	outFormat audio.PCMFormat
	locker    sync.Mutex
	buffer    []byte
	pending   []byte
}

var _ io.Reader = (*DownmixReader)(nil)

func NewDownmixReader(
	inFormat Format,
	inReader io.Reader,
	outFormat audio.PCMFormat,
) (*DownmixReader, error) {
	if inFormat.Channels == 0 {
		return nil, fmt.Errorf("the amount of input channels must be positive")
	}
	if inFormat.PCMFormat.Size() == 0 {
		return nil, fmt.Errorf("unsupported input PCM format: %v", inFormat.PCMFormat)
	}
	if outFormat.Size() == 0 {
		return nil, fmt.Errorf("unsupported output PCM format: %v", outFormat)
	}
	return &DownmixReader{
		inReader:  inReader,
		inFormat:  inFormat,
		outFormat: outFormat,
	}, nil
}

func (r *DownmixReader) Read(p []byte) (int, error) {
	r.locker.Lock()
	defer r.locker.Unlock()

	inSampleSize := r.inFormat.PCMFormat.Size()
	inFrameSize := int(r.inFormat.FrameSize())
	outSampleSize := int(r.outFormat.Size())

	maxOutSamples := len(p) / outSampleSize
	if maxOutSamples == 0 {
		return 0, fmt.Errorf("the provided output buffer is too short: %d < %d", len(p), outSampleSize)
	}

	bytesToRead := maxOutSamples*inFrameSize - len(r.pending)
	if bytesToRead < 0 {
		bytesToRead = 0
	}
	if cap(r.buffer) < len(r.pending)+bytesToRead {
		r.buffer = make([]byte, len(r.pending)+bytesToRead)
	}
	buf := r.buffer[:len(r.pending)+bytesToRead]
	copy(buf, r.pending)
	n, err := io.ReadAtLeast(r.inReader, buf[len(r.pending):], min(inFrameSize, bytesToRead))
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	buf = buf[:len(r.pending)+n]

	framesRead := len(buf) / inFrameSize
	r.pending = append(r.pending[:0], buf[framesRead*inFrameSize:]...)
	if err == io.EOF && len(r.pending) > 0 {
		return 0, fmt.Errorf("the stream ended in the middle of a frame: %d trailing bytes is not a multiple of %d", len(r.pending), inFrameSize)
	}

	for frameIdx := 0; frameIdx < framesRead; frameIdx++ {
		frame := buf[frameIdx*inFrameSize:]
		var sum float64
		for ch := 0; ch < int(r.inFormat.Channels); ch++ {
			sum += DecodeSample(r.inFormat.PCMFormat, frame[ch*int(inSampleSize):])
		}
		EncodeSample(r.outFormat, p[frameIdx*outSampleSize:], sum/float64(r.inFormat.Channels))
	}

	if framesRead > 0 && err == io.EOF {
		err = nil
	}
	return framesRead * outSampleSize, err
}
