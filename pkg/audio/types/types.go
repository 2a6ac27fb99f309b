package types

import (
	"fmt"
	"strings"
	"time"
)

type Channel uint16

type SampleRate uint32

type PCMFormat uint

const (
	PCMFormatUndefined = PCMFormat(iota)
	PCMFormatU8
	PCMFormatS16LE
	PCMFormatS16BE
	PCMFormatS24LE
	PCMFormatS24BE
	PCMFormatS32LE
	PCMFormatS32BE
	PCMFormatS64LE
	PCMFormatS64BE
	PCMFormatFloat32LE
	PCMFormatFloat32BE
	PCMFormatFloat64LE
	PCMFormatFloat64BE
	EndOfPCMFormat
)

// Size returns the size of one sample of one channel in bytes.
func (f PCMFormat) Size() uint {
	switch f {
	case PCMFormatU8:
		return 1
	case PCMFormatS16LE, PCMFormatS16BE:
		return 2
	case PCMFormatS24LE, PCMFormatS24BE:
		return 3
	case PCMFormatS32LE, PCMFormatS32BE, PCMFormatFloat32LE, PCMFormatFloat32BE:
		return 4
	case PCMFormatS64LE, PCMFormatS64BE, PCMFormatFloat64LE, PCMFormatFloat64BE:
		return 8
	default:
		return 0
	}
}

func (f PCMFormat) String() string {
	switch f {
	case PCMFormatUndefined:
		return "undefined"
	case PCMFormatU8:
		return "u8"
	case PCMFormatS16LE:
		return "s16le"
	case PCMFormatS16BE:
		return "s16be"
	case PCMFormatS24LE:
		return "s24le"
	case PCMFormatS24BE:
		return "s24be"
	case PCMFormatS32LE:
		return "s32le"
	case PCMFormatS32BE:
		return "s32be"
	case PCMFormatS64LE:
		return "s64le"
	case PCMFormatS64BE:
		return "s64be"
	case PCMFormatFloat32LE:
		return "f32le"
	case PCMFormatFloat32BE:
		return "f32be"
	case PCMFormatFloat64LE:
		return "f64le"
	case PCMFormatFloat64BE:
		return "f64be"
	default:
		return fmt.Sprintf("unknown_format_%d", uint(f))
	}
}

func PCMFormatFromString(s string) PCMFormat {
	s = strings.ToLower(strings.TrimSpace(s))
	for f := PCMFormatUndefined + 1; f < EndOfPCMFormat; f++ {
		if f.String() == s {
			return f
		}
	}
	return PCMFormatUndefined
}

// Set implements pflag.Value.
func (f *PCMFormat) Set(s string) error {
	v := PCMFormatFromString(s)
	if v == PCMFormatUndefined {
		return fmt.Errorf("unknown PCM format '%s'", s)
	}
	*f = v
	return nil
}

// Type implements pflag.Value.
func (f *PCMFormat) Type() string {
	return "pcm-format"
}

type Encoding interface {
	BytesPerSample() uint
	BytesForDuration(time.Duration) uint64
}

type EncodingPCM struct {
	PCMFormat
	SampleRate
}

var _ Encoding = EncodingPCM{}

func (e EncodingPCM) BytesPerSample() uint {
	return e.PCMFormat.Size()
}

// BytesForDuration returns the size of a single-channel span of the given duration.
func (e EncodingPCM) BytesForDuration(d time.Duration) uint64 {
	samples := uint64(d) * uint64(e.SampleRate) / uint64(time.Second)
	return samples * uint64(e.BytesPerSample())
}
