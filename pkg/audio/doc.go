// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Buffer types and sample conversion functions
// Package audio provides the PCM types shared by the metronome and the media player.
//
// The metronome works in mono signed 16-bit little-endian PCM at 44.1kHz.
// Decoded media is carried as int32 samples left-justified in 24 bits so that
// 16-bit and 24-bit sources share one representation.
//
// Example:
//
//	format := audio.Format{Codec: "pcm", SampleRate: 44100, Channels: 1, BitDepth: 16}
//	n := format.BytesFor(40 * time.Millisecond) // 3528
//	pcm := audio.EncodeInt16LE([]int16{audio.QuantizeInt16(0.5)})
package audio
