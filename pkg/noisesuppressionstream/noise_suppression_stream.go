// Package noisesuppressionstream pipes a PCM stream through a
// noisesuppression.NoiseSuppression.
package noisesuppressionstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/iamcalledrob/circular"
	"github.com/xaionaro-go/audiodenoise/pkg/audio"
	"github.com/xaionaro-go/audiodenoise/pkg/noisesuppression"
	"github.com/xaionaro-go/observability"
)

const (
	maxReadBufferSize = 65536
)

// NoiseSuppressionStream is an io.Reader of the denoised input.
//
// The input is consumed in ChunkSize() pieces; the trailing piece shorter
// than a chunk is zero-padded for the suppressor and truncated back in the
// output, so the output has exactly the length of the input.
type NoiseSuppressionStream struct {
	noisesuppression.NoiseSuppression
	encoding     audio.Encoding
	channels     audio.Channel
	chunkSize    int
	readBufSize  int
	locker       sync.Mutex
	changedCh    chan struct{}
	inputBuffer  *circular.Buffer
	outputBuffer *circular.Buffer
	inputEOF     bool
	outputEOF    bool
	resultError  error
	readCtx      context.Context
}

var _ io.Reader = (*NoiseSuppressionStream)(nil)

func NewNoiseSuppressionStream(
	ctx context.Context,
	input io.Reader,
	noiseSuppression noisesuppression.NoiseSuppression,
	inputBufferSize uint,
	outputBufferSize uint,
) (*NoiseSuppressionStream, error) {
	encoding, err := noiseSuppression.Encoding(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get the encoding of the noise suppression: %w", err)
	}
	channels, err := noiseSuppression.Channels(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get the amount of channels of the noise suppression: %w", err)
	}
	chunkSize := noiseSuppression.ChunkSize()
	if chunkSize == 0 {
		return nil, fmt.Errorf("the noise suppression has no chunk size")
	}
	if inputBufferSize < chunkSize {
		return nil, fmt.Errorf("the input buffer size is less than the chunk size: %d < %d", inputBufferSize, chunkSize)
	}
	if outputBufferSize < chunkSize {
		return nil, fmt.Errorf("the output buffer size is less than the chunk size: %d < %d", outputBufferSize, chunkSize)
	}

	s := &NoiseSuppressionStream{
		NoiseSuppression: noiseSuppression,
		encoding:         encoding,
		channels:         channels,
		chunkSize:        int(chunkSize),
		readBufSize:      min(maxReadBufferSize, int(inputBufferSize)),
		changedCh:        make(chan struct{}),
		inputBuffer:      circular.NewBuffer(int(inputBufferSize)),
		outputBuffer:     circular.NewBuffer(int(outputBufferSize)),
		readCtx:          ctx,
	}
	observability.Go(ctx, func() {
		err := s.readerLoop(ctx, input)
		if err != nil {
			s.setError(fmt.Errorf("got an error from the reader loop: %w", err))
		}
	})
	observability.Go(ctx, func() {
		err := s.noiseSuppressionLoop(ctx)
		s.locker.Lock()
		defer s.locker.Unlock()
		if err != nil && s.resultError == nil {
			s.resultError = fmt.Errorf("got an error from the noise suppressor loop: %w", err)
		}
		s.outputEOF = true
		s.notifyLocked()
	})
	return s, nil
}

func (s *NoiseSuppressionStream) setError(err error) {
	s.locker.Lock()
	defer s.locker.Unlock()
	if s.resultError == nil {
		s.resultError = err
	}
	s.notifyLocked()
}

func (s *NoiseSuppressionStream) notifyLocked() {
	close(s.changedCh)
	s.changedCh = make(chan struct{})
}

// waitLocked releases the lock until any state change or ctx cancellation.
func (s *NoiseSuppressionStream) waitLocked(ctx context.Context) error {
	ch := s.changedCh
	s.locker.Unlock()
	defer s.locker.Lock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}

func (s *NoiseSuppressionStream) readerLoop(
	ctx context.Context,
	input io.Reader,
) (_err error) {
	logger.Tracef(ctx, "readerLoop")
	defer func() { logger.Tracef(ctx, "/readerLoop %v", _err) }()

	readBuf := make([]byte, s.readBufSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := input.Read(readBuf)
		logger.Tracef(ctx, "readerLoop: Read(): %v %v", n, readErr)
		if n < 0 || n > len(readBuf) {
			return fmt.Errorf("received invalid value of received bytes: %d", n)
		}
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("unable to read the input: %w", readErr)
		}

		if err := func() error {
			s.locker.Lock()
			defer s.locker.Unlock()
			for n > 0 {
				if s.resultError != nil {
					return nil
				}
				w, err := s.inputBuffer.Write(readBuf[:n])
				if err == nil {
					if w != n {
						return fmt.Errorf("wrote != read: %d != %d", w, n)
					}
					break
				}
				if !errors.Is(err, circular.ErrNoSpace) {
					return fmt.Errorf("unable to write to the circular buffer: %w", err)
				}
				if err := s.waitLocked(ctx); err != nil {
					return err
				}
			}
			if errors.Is(readErr, io.EOF) {
				s.inputEOF = true
			}
			s.notifyLocked()
			return nil
		}(); err != nil {
			return err
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
	}
}

// readChunk fills buf from the input buffer; it returns less than len(buf)
// only at the end of the input.
func (s *NoiseSuppressionStream) readChunk(ctx context.Context, buf []byte) (int, error) {
	s.locker.Lock()
	defer s.locker.Unlock()

	received := 0
	for received < len(buf) {
		if s.resultError != nil {
			return 0, s.resultError
		}
		n, err := s.inputBuffer.Read(buf[received:])
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("unable to read from the circular buffer: %w", err)
		}
		if n < 0 {
			return 0, fmt.Errorf("received a negative count: %d", n)
		}
		if n > 0 {
			received += n
			s.notifyLocked()
			continue
		}
		if s.inputEOF {
			break
		}
		if err := s.waitLocked(ctx); err != nil {
			return 0, err
		}
	}
	return received, nil
}

func (s *NoiseSuppressionStream) writeOutput(ctx context.Context, buf []byte) error {
	s.locker.Lock()
	defer s.locker.Unlock()
	for {
		if s.resultError != nil {
			return s.resultError
		}
		w, err := s.outputBuffer.Write(buf)
		if err == nil {
			if w != len(buf) {
				return fmt.Errorf("wrote != read: %d != %d", w, len(buf))
			}
			s.notifyLocked()
			return nil
		}
		if !errors.Is(err, circular.ErrNoSpace) {
			return fmt.Errorf("unable to write to the circular buffer: %w", err)
		}
		if err := s.waitLocked(ctx); err != nil {
			return err
		}
	}
}

func (s *NoiseSuppressionStream) noiseSuppressionLoop(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "noiseSuppressionLoop")
	defer func() { logger.Tracef(ctx, "/noiseSuppressionLoop: %v", _err) }()

	frameSize := int(s.encoding.BytesPerSample()) * int(s.channels)
	logger.Debugf(ctx, "chunkSize: %d, frameSize: %d", s.chunkSize, frameSize)

	inputBuf := make([]byte, s.chunkSize)
	outputBuf := make([]byte, s.chunkSize)
	for {
		received, err := s.readChunk(ctx, inputBuf)
		if err != nil {
			return err
		}
		if received == 0 {
			return nil
		}
		if frameSize > 0 && received%frameSize != 0 {
			return fmt.Errorf("the input ended in the middle of a frame: %d %% %d != 0", received, frameSize)
		}
		clear(inputBuf[received:])

		var score float64
		partial, isPartial := s.NoiseSuppression.(noisesuppression.PartialChunkNoiseSuppression)
		if isPartial && received < s.chunkSize {
			score, err = partial.SuppressNoisePartial(ctx, inputBuf, outputBuf, uint(received))
		} else {
			score, err = s.NoiseSuppression.SuppressNoise(ctx, inputBuf, outputBuf)
		}
		logger.Tracef(ctx, "SuppressNoise: %v %v", score, err)
		if err != nil {
			return fmt.Errorf("unable to noise-suppress: %w", err)
		}

		if err := s.writeOutput(ctx, outputBuf[:received]); err != nil {
			return err
		}
		if received < s.chunkSize {
			return nil
		}
	}
}

// Read returns io.EOF after all the processed input is read.
func (s *NoiseSuppressionStream) Read(pcm []byte) (_ret int, _err error) {
	logger.Tracef(s.readCtx, "Read, len:%d", len(pcm))
	defer func() { logger.Tracef(s.readCtx, "/Read, len:%d: %d, %v", len(pcm), _ret, _err) }()

	if len(pcm) == 0 {
		return 0, nil
	}

	s.locker.Lock()
	defer s.locker.Unlock()
	for {
		n, err := s.outputBuffer.Read(pcm)
		if n > 0 {
			s.notifyLocked()
			return n, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		if s.resultError != nil {
			return 0, s.resultError
		}
		if s.outputEOF {
			return 0, io.EOF
		}
		if err := s.waitLocked(s.readCtx); err != nil {
			return 0, err
		}
	}
}
