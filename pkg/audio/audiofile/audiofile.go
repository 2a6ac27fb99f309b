// Package audiofile decodes audio files into float samples and encodes
// denoised signals back: WAV (read/write), Ogg Vorbis (read) and raw PCM
// (read/write).
package audiofile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audiodenoise/pkg/audio"
)

type Container uint

const (
	ContainerUndefined = Container(iota)
	ContainerWAV
	ContainerOgg
	EndOfContainer
)

func (c Container) String() string {
	switch c {
	case ContainerUndefined:
		return "undefined"
	case ContainerWAV:
		return "wav"
	case ContainerOgg:
		return "ogg"
	default:
		return fmt.Sprintf("unknown_container_%d", uint(c))
	}
}

// Audio is decoded audio with interleaved samples (one sample of every
// channel per frame). Integer PCM is scaled into [-1, 1).
type Audio struct {
	Samples    []float64
	Channels   audio.Channel
	SampleRate audio.SampleRate

	// BitDepth is the sample size of integer PCM sources; zero otherwise.
	BitDepth int
}

func (a *Audio) FrameCount() int {
	if a.Channels == 0 {
		return 0
	}
	return len(a.Samples) / int(a.Channels)
}

// Mono reduces the audio to one channel by the channel mean.
func (a *Audio) Mono() (audio.Signal, error) {
	samples, err := audio.DownmixInterleaved(a.Samples, a.Channels)
	if err != nil {
		return audio.Signal{}, err
	}
	return audio.Signal{
		Samples:    samples,
		SampleRate: a.SampleRate,
	}, nil
}

// DetectContainer detects the container by its magic bytes and rewinds r.
func DetectContainer(r io.ReadSeeker) (Container, error) {
	magic := make([]byte, 4)
	_, err := io.ReadFull(r, magic)
	if _, seekErr := r.Seek(0, io.SeekStart); seekErr != nil {
		return ContainerUndefined, fmt.Errorf("unable to rewind: %w", seekErr)
	}
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ContainerUndefined, fmt.Errorf("the file is too short to be an audio file")
		}
		return ContainerUndefined, fmt.Errorf("unable to read the header: %w", err)
	}
	switch {
	case bytes.Equal(magic, []byte("RIFF")):
		return ContainerWAV, nil
	case bytes.Equal(magic, []byte("OggS")):
		return ContainerOgg, nil
	default:
		return ContainerUndefined, fmt.Errorf("unrecognized audio container (header %q)", magic)
	}
}

// ReadFile decodes a WAV or Ogg Vorbis file detected by its content.
func ReadFile(ctx context.Context, path string) (_ret *Audio, _err error) {
	logger.Tracef(ctx, "ReadFile: %s", path)
	defer func() { logger.Tracef(ctx, "/ReadFile: %s: %v", path, _err) }()

	if ext := strings.ToLower(filepath.Ext(path)); ext != ".wav" {
		logger.Warnf(ctx, "Input file is not .wav format (%s). Results may vary.", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	defer f.Close()

	container, err := DetectContainer(f)
	if err != nil {
		return nil, fmt.Errorf("unable to detect the format of '%s': %w", path, err)
	}
	logger.Debugf(ctx, "container of '%s': %s", path, container)

	switch container {
	case ContainerWAV:
		return ReadWAV(f)
	case ContainerOgg:
		return ReadOgg(f)
	default:
		return nil, fmt.Errorf("unsupported container: %v", container)
	}
}

// WriteFile writes signal as a mono integer PCM WAV file, creating the
// parent directories.
func WriteFile(ctx context.Context, path string, signal audio.Signal, bitDepth int) (_err error) {
	logger.Tracef(ctx, "WriteFile: %s", path)
	defer func() { logger.Tracef(ctx, "/WriteFile: %s: %v", path, _err) }()

	if err := MkdirParent(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create '%s': %w", path, err)
	}
	if err := WriteWAV(f, signal, bitDepth); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to close '%s': %w", path, err)
	}
	return nil
}

// MkdirParent creates the parent directories of path.
func MkdirParent(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("unable to create the directory '%s': %w", dir, err)
	}
	return nil
}
