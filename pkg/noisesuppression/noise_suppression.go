// Package noisesuppression defines chunk-oriented noise suppressors of raw
// PCM, as consumed by noisesuppressionstream.
package noisesuppression

import (
	"context"

	"github.com/xaionaro-go/audiodenoise/pkg/audio"
)

type NoiseSuppression interface {
	audio.AbstractAnalyzer

	// ChunkSize is the size in bytes of the input SuppressNoise accepts;
	// the input must be a multiple of it.
	ChunkSize() uint

	// SuppressNoise writes the denoised input into output (of the same
	// length) and returns a suppressor-specific score of the processed
	// chunks.
	SuppressNoise(ctx context.Context, input []byte, output []byte) (float64, error)
}

// PartialChunkNoiseSuppression is a NoiseSuppression that also accepts the
// trailing chunk of a stream: a single zero-padded chunk of which only the
// first length bytes are input.
type PartialChunkNoiseSuppression interface {
	NoiseSuppression

	SuppressNoisePartial(ctx context.Context, input []byte, output []byte, length uint) (float64, error)
}
