package audiofile

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"
	"github.com/xaionaro-go/audiodenoise/pkg/audio"
	"github.com/xaionaro-go/audiodenoise/pkg/audio/pcm"
)

// ReadOgg decodes an Ogg Vorbis stream.
func ReadOgg(r io.Reader) (*Audio, error) {
	oggReader, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a vorbis reader: %w", err)
	}
	if oggReader.Channels() <= 0 || oggReader.SampleRate() <= 0 {
		return nil, fmt.Errorf("invalid vorbis stream: %d channels at %d Hz", oggReader.Channels(), oggReader.SampleRate())
	}

	format := pcm.Format{
		Channels:   audio.Channel(oggReader.Channels()),
		SampleRate: audio.SampleRate(oggReader.SampleRate()),
		PCMFormat:  audio.PCMFormatFloat32LE,
	}
	data, err := io.ReadAll(pcm.NewReaderFromFloat32Reader(oggReader))
	if err != nil {
		return nil, fmt.Errorf("unable to decode the vorbis stream: %w", err)
	}
	return decodeInterleaved(format, data)
}
