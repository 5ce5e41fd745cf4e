// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes a whole MP3 stream to interleaved stereo int32 samples
package decode

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// DecodeMP3 decodes an MP3 stream. go-mp3 always yields 16-bit stereo.
func DecodeMP3(r io.Reader) (audio.Buffer, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	pcm, err := readAll(decoder)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("mp3 decode error: %w", err)
	}

	samples := make([]int32, len(pcm)/2)
	for i, s := range audio.DecodeInt16LE(pcm) {
		samples[i] = audio.SampleFromInt16(s)
	}

	return audio.Buffer{
		Samples: samples,
		Format: audio.Format{
			Codec:      CodecMP3,
			SampleRate: decoder.SampleRate(),
			Channels:   2,
			BitDepth:   16,
		},
	}, nil
}
