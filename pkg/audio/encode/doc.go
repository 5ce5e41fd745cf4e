// ABOUTME: Audio encoder package for encoding PCM to bytes and files
// ABOUTME: Provides the Encoder interface, the PCM encoder and a WAV writer
// Package encode turns samples back into bytes.
//
// Supports: 16-bit PCM and WAV files wrapping it.
//
// All encoders accept int32 samples in 24-bit range.
//
// Example:
//
//	encoder, err := encode.NewPCM(format)
//	data, err := encoder.Encode(samples)
//	err = encode.WriteWAV(f, format, data)
package encode
