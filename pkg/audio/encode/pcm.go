// ABOUTME: PCM audio encoder
// ABOUTME: Packs 24-bit-justified int32 samples into 16-bit little-endian bytes
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio"
)

// PCMEncoder encodes 16-bit PCM, the format of the output device and of
// rendered clicks
type PCMEncoder struct{}

// NewPCM creates a new PCM encoder. WAV payloads are plain PCM, so "wav"
// is accepted as well.
func NewPCM(format audio.Format) (Encoder, error) {
	if format.Codec != "pcm" && format.Codec != "wav" {
		return nil, fmt.Errorf("invalid codec for PCM encoder: %s", format.Codec)
	}

	if format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16)", format.BitDepth)
	}

	return &PCMEncoder{}, nil
}

// Encode converts int32 samples to PCM bytes
func (e *PCMEncoder) Encode(samples []int32) ([]byte, error) {
	output := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(output[i*2:], uint16(audio.SampleToInt16(sample)))
	}
	return output, nil
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}
