// ABOUTME: Audio type definitions
// ABOUTME: Defines PCM formats, decoded buffers and sample conversion helpers
package audio

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23

	// 16-bit audio range constants
	MaxInt16 = 32767
	MinInt16 = -32768

	// BytesPerSample16 is the width of one signed 16-bit sample
	BytesPerSample16 = 2
)

// Format describes a PCM stream format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// FrameSize returns the number of bytes in one frame (one sample per channel)
func (f Format) FrameSize() int {
	return f.Channels * f.BitDepth / 8
}

// BytesFor returns the byte length of d worth of audio, aligned to whole frames
func (f Format) BytesFor(d time.Duration) int {
	frames := int(d.Seconds() * float64(f.SampleRate))
	return frames * f.FrameSize()
}

// DurationOf returns the playback duration of n bytes of audio
func (f Format) DurationOf(n int) time.Duration {
	frameSize := f.FrameSize()
	if frameSize == 0 || f.SampleRate == 0 {
		return 0
	}
	frames := n / frameSize
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Buffer represents decoded PCM audio
type Buffer struct {
	Samples []int32 // Interleaved PCM samples, 24-bit justified in int32
	Format  Format
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit (or 16-bit) to 16-bit range
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	return int32(sample) << 8
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}

// QuantizeInt16 maps a float sample in [-1, 1] to signed 16-bit with rounding.
// Out-of-range input saturates.
func QuantizeInt16(sample float64) int16 {
	v := math.Round(sample * MaxInt16)
	if v > MaxInt16 {
		return MaxInt16
	}
	if v < MinInt16 {
		return MinInt16
	}
	return int16(v)
}

// EncodeInt16LE packs int16 samples as little-endian bytes
func EncodeInt16LE(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample16)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// DecodeInt16LE unpacks little-endian bytes into int16 samples.
// A trailing odd byte is ignored.
func DecodeInt16LE(data []byte) []int16 {
	samples := make([]int16, len(data)/BytesPerSample16)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}
