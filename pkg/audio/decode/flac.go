// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes a whole FLAC stream frame by frame with mewkiz/flac
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio"
	"github.com/mewkiz/flac"
)

// DecodeFLAC decodes a FLAC stream to interleaved int32 samples in 24-bit range
func DecodeFLAC(r io.Reader) (audio.Buffer, error) {
	stream, err := flac.New(r)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to open flac stream: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	channels := int(info.NChannels)
	bps := int(info.BitsPerSample)
	if channels == 0 || bps == 0 {
		return audio.Buffer{}, fmt.Errorf("flac stream missing channel or bit depth info")
	}

	samples := make([]int32, 0, int(info.NSamples)*channels)
	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return audio.Buffer{}, fmt.Errorf("flac frame: %w", err)
		}

		n := int(frame.BlockSize)
		for i := 0; i < n; i++ {
			for ch := 0; ch < channels; ch++ {
				samples = append(samples, scaleTo24(frame.Subframes[ch].Samples[i], bps))
			}
		}
	}

	return audio.Buffer{
		Samples: samples,
		Format: audio.Format{
			Codec:      CodecFLAC,
			SampleRate: int(info.SampleRate),
			Channels:   channels,
			BitDepth:   bps,
		},
	}, nil
}

// scaleTo24 moves a sample of the given bit depth into 24-bit range
func scaleTo24(sample int32, bitDepth int) int32 {
	switch {
	case bitDepth < 24:
		return sample << (24 - bitDepth)
	case bitDepth > 24:
		return sample >> (bitDepth - 24)
	default:
		return sample
	}
}
