package audiofile

import (
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/xaionaro-go/audiodenoise/pkg/audio"
	"github.com/xaionaro-go/audiodenoise/pkg/audio/pcm"
)

const (
	wavFormatPCM       = 1
	wavFormatIEEEFloat = 3

	DefaultBitDepth = 16
)

func IsSupportedBitDepth(bitDepth int) bool {
	switch bitDepth {
	case 8, 16, 24, 32:
		return true
	}
	return false
}

// intScale is the magnitude of full scale of signed PCM of the bit depth.
func intScale(bitDepth int) float64 {
	return float64(int64(1) << (bitDepth - 1))
}

// ReadWAV decodes integer PCM WAV (8-bit samples are unsigned) and 32/64-bit
// IEEE float WAV.
func ReadWAV(r io.ReadSeeker) (*Audio, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	switch decoder.WavAudioFormat {
	case wavFormatPCM:
	case wavFormatIEEEFloat:
		return readFloatWAV(decoder)
	default:
		return nil, fmt.Errorf("unsupported WAV audio format %d, only integer PCM (%d) and IEEE float (%d) are supported", decoder.WavAudioFormat, wavFormatPCM, wavFormatIEEEFloat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("unable to read the PCM buffer: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid WAV format: %#+v", buf.Format)
	}
	bitDepth := int(decoder.BitDepth)
	if !IsSupportedBitDepth(bitDepth) {
		return nil, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}

	scale := intScale(bitDepth)
	samples := make([]float64, len(buf.Data))
	for idx, v := range buf.Data {
		if bitDepth == 8 {
			samples[idx] = (float64(v) - 128) / 128
			continue
		}
		samples[idx] = float64(v) / scale
	}
	return &Audio{
		Samples:    samples,
		Channels:   audio.Channel(buf.Format.NumChannels),
		SampleRate: audio.SampleRate(buf.Format.SampleRate),
		BitDepth:   bitDepth,
	}, nil
}

// readFloatWAV decodes the data chunk of a float WAV; go-audio decodes
// only integer samples.
func readFloatWAV(decoder *wav.Decoder) (*Audio, error) {
	var pcmFormat audio.PCMFormat
	switch decoder.BitDepth {
	case 32:
		pcmFormat = audio.PCMFormatFloat32LE
	case 64:
		pcmFormat = audio.PCMFormatFloat64LE
	default:
		return nil, fmt.Errorf("unsupported float bit depth: %d", decoder.BitDepth)
	}
	if decoder.SampleRate == 0 {
		return nil, fmt.Errorf("invalid WAV sample rate: 0")
	}

	if err := decoder.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("unable to find the data chunk: %w", err)
	}
	if decoder.PCMChunk == nil {
		return nil, fmt.Errorf("the data chunk is not found")
	}
	data, err := io.ReadAll(decoder.PCMChunk.R)
	if err != nil {
		return nil, fmt.Errorf("unable to read the data chunk: %w", err)
	}
	// an odd-sized data chunk is read with its pad byte
	data = data[:len(data)/int(pcmFormat.Size())*int(pcmFormat.Size())]

	return decodeInterleaved(pcm.Format{
		Channels:   audio.Channel(decoder.NumChans),
		SampleRate: audio.SampleRate(decoder.SampleRate),
		PCMFormat:  pcmFormat,
	}, data)
}

// WriteWAV encodes signal as mono integer PCM WAV; samples out of
// [-1, 1] are clipped.
func WriteWAV(w io.WriteSeeker, signal audio.Signal, bitDepth int) error {
	if !IsSupportedBitDepth(bitDepth) {
		return fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}
	if signal.SampleRate == 0 {
		return fmt.Errorf("the sample rate must be positive")
	}

	scale := intScale(bitDepth)
	data := make([]int, len(signal.Samples))
	for idx, v := range signal.Samples {
		q := math.Round(min(max(v, -1), 1) * scale)
		q = min(max(q, -scale), scale-1)
		if bitDepth == 8 {
			q += 128
		}
		data[idx] = int(q)
	}

	encoder := wav.NewEncoder(w, int(signal.SampleRate), bitDepth, 1, wavFormatPCM)
	err := encoder.Write(&goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  int(signal.SampleRate),
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	})
	if err != nil {
		encoder.Close()
		return fmt.Errorf("unable to write the samples: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("unable to finalize the WAV file: %w", err)
	}
	return nil
}
