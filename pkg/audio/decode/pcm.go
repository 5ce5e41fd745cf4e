// ABOUTME: PCM audio decoder
// ABOUTME: Decodes little-endian 8, 16 and 24-bit PCM chunks to int32 samples
package decode

import (
	"fmt"

	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio"
)

// PCMDecoder decodes raw PCM chunks
type PCMDecoder struct {
	bitDepth int
}

// NewPCM creates a PCM decoder for format. WAV payloads use the same decoder.
func NewPCM(format audio.Format) (Decoder, error) {
	if format.Codec != "pcm" && format.Codec != CodecWAV {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}

	switch format.BitDepth {
	case 8, 16, 24:
	default:
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 8, 16, 24)", format.BitDepth)
	}

	return &PCMDecoder{bitDepth: format.BitDepth}, nil
}

// Decode converts PCM bytes to int32 samples in 24-bit range.
// A trailing partial sample is dropped.
func (d *PCMDecoder) Decode(data []byte) ([]int32, error) {
	switch d.bitDepth {
	case 24:
		samples := make([]int32, len(data)/3)
		for i := range samples {
			samples[i] = audio.SampleFrom24Bit([3]byte{data[i*3], data[i*3+1], data[i*3+2]})
		}
		return samples, nil

	case 8:
		// 8-bit PCM is unsigned with a 128 midpoint
		samples := make([]int32, len(data))
		for i, b := range data {
			samples[i] = (int32(b) - 128) << 16
		}
		return samples, nil

	default:
		pcm := audio.DecodeInt16LE(data)
		samples := make([]int32, len(pcm))
		for i, s := range pcm {
			samples[i] = audio.SampleFromInt16(s)
		}
		return samples, nil
	}
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}
