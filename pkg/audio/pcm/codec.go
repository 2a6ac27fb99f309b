package pcm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/xaionaro-go/audiodenoise/pkg/audio"
)

// DecodeSample decodes one sample of format f from the beginning of p into [-1, 1).
func DecodeSample(f audio.PCMFormat, p []byte) float64 {
	switch f {
	case audio.PCMFormatU8:
		return (float64(p[0]) - 128) / 128
	case audio.PCMFormatS16LE:
		return float64(int16(binary.LittleEndian.Uint16(p))) / 32768
	case audio.PCMFormatS16BE:
		return float64(int16(binary.BigEndian.Uint16(p))) / 32768
	case audio.PCMFormatS24LE:
		val := int32(uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16)
		if val&0x800000 != 0 {
			val |= -16777216
		}
		return float64(val) / 8388608
	case audio.PCMFormatS24BE:
		val := int32(uint32(p[2]) | uint32(p[1])<<8 | uint32(p[0])<<16)
		if val&0x800000 != 0 {
			val |= -16777216
		}
		return float64(val) / 8388608
	case audio.PCMFormatS32LE:
		return float64(int32(binary.LittleEndian.Uint32(p))) / 2147483648
	case audio.PCMFormatS32BE:
		return float64(int32(binary.BigEndian.Uint32(p))) / 2147483648
	case audio.PCMFormatS64LE:
		return float64(int64(binary.LittleEndian.Uint64(p))) / 9223372036854775808
	case audio.PCMFormatS64BE:
		return float64(int64(binary.BigEndian.Uint64(p))) / 9223372036854775808
	case audio.PCMFormatFloat32LE:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p)))
	case audio.PCMFormatFloat32BE:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(p)))
	case audio.PCMFormatFloat64LE:
		return math.Float64frombits(binary.LittleEndian.Uint64(p))
	case audio.PCMFormatFloat64BE:
		return math.Float64frombits(binary.BigEndian.Uint64(p))
	default:
		panic(fmt.Sprintf("unknown format: %v", f))
	}
}

// EncodeSample encodes v into the beginning of p. Integer formats are clipped
// to their range; float formats are stored as is.
func EncodeSample(f audio.PCMFormat, p []byte, v float64) {
	switch f {
	case audio.PCMFormatU8:
		p[0] = byte(clipInt(math.Round(v*128+128), 0, 255))
	case audio.PCMFormatS16LE:
		binary.LittleEndian.PutUint16(p, uint16(int16(clipInt(math.Round(v*32768), math.MinInt16, math.MaxInt16))))
	case audio.PCMFormatS16BE:
		binary.BigEndian.PutUint16(p, uint16(int16(clipInt(math.Round(v*32768), math.MinInt16, math.MaxInt16))))
	case audio.PCMFormatS24LE:
		val := int32(clipInt(math.Round(v*8388608), -8388608, 8388607))
		p[0] = byte(val)
		p[1] = byte(val >> 8)
		p[2] = byte(val >> 16)
	case audio.PCMFormatS24BE:
		val := int32(clipInt(math.Round(v*8388608), -8388608, 8388607))
		p[0] = byte(val >> 16)
		p[1] = byte(val >> 8)
		p[2] = byte(val)
	case audio.PCMFormatS32LE:
		binary.LittleEndian.PutUint32(p, uint32(int32(clipInt(math.Round(v*2147483648), math.MinInt32, math.MaxInt32))))
	case audio.PCMFormatS32BE:
		binary.BigEndian.PutUint32(p, uint32(int32(clipInt(math.Round(v*2147483648), math.MinInt32, math.MaxInt32))))
	case audio.PCMFormatS64LE:
		binary.LittleEndian.PutUint64(p, uint64(clipInt64(v)))
	case audio.PCMFormatS64BE:
		binary.BigEndian.PutUint64(p, uint64(clipInt64(v)))
	case audio.PCMFormatFloat32LE:
		binary.LittleEndian.PutUint32(p, math.Float32bits(float32(v)))
	case audio.PCMFormatFloat32BE:
		binary.BigEndian.PutUint32(p, math.Float32bits(float32(v)))
	case audio.PCMFormatFloat64LE:
		binary.LittleEndian.PutUint64(p, math.Float64bits(v))
	case audio.PCMFormatFloat64BE:
		binary.BigEndian.PutUint64(p, math.Float64bits(v))
	default:
		panic(fmt.Sprintf("unknown format: %v", f))
	}
}

func clipInt(v, lo, hi float64) int64 {
	switch {
	case v < lo:
		return int64(lo)
	case v > hi:
		return int64(hi)
	default:
		return int64(v)
	}
}

func clipInt64(v float64) int64 {
	switch {
	case v >= 1:
		return math.MaxInt64
	case v <= -1:
		return math.MinInt64
	default:
		return int64(v * 9223372036854775808)
	}
}
