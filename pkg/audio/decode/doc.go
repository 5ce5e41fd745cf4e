// ABOUTME: Audio decoder package for media playback
// ABOUTME: Provides whole-file decoding for MP3, FLAC and WAV plus raw PCM
// Package decode turns encoded audio files into PCM.
//
// Supports: MP3 (go-mp3), FLAC (mewkiz/flac), WAV and raw PCM at 8, 16
// and 24 bits.
//
// All decoders output int32 samples in 24-bit range so callers can
// resample and quantize them the same way regardless of source.
//
// Example:
//
//	buf, err := decode.File("bell.flac", data)
//	fmt.Println(buf.Format.SampleRate, len(buf.Samples))
package decode
