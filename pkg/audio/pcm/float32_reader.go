package pcm

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// Float32Reader is a source of native float samples, like a vorbis decoder.
type Float32Reader interface {
	Read(p []float32) (int, error)
}

type readerFromFloat32Reader struct {
	reader  Float32Reader
	samples []float32
	pending []byte
}

var _ io.Reader = (*readerFromFloat32Reader)(nil)

// NewReaderFromFloat32Reader returns the samples of r as PCMFormatFloat32LE bytes.
func NewReaderFromFloat32Reader(r Float32Reader) io.Reader {
	return &readerFromFloat32Reader{
		reader: r,
	}
}

func (r *readerFromFloat32Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(r.pending) > 0 {
		n := copy(p, r.pending)
		r.pending = r.pending[n:]
		return n, nil
	}

	count := max(len(p)/4, 1)
	if cap(r.samples) < count {
		r.samples = make([]float32, count)
	}
	n, err := r.reader.Read(r.samples[:count])
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	if n == 0 {
		if err == nil {
			return 0, nil
		}
		return 0, io.EOF
	}

	encoded := make([]byte, n*4)
	for idx, v := range r.samples[:n] {
		binary.LittleEndian.PutUint32(encoded[idx*4:], math.Float32bits(v))
	}
	copied := copy(p, encoded)
	r.pending = encoded[copied:]
	return copied, nil
}
