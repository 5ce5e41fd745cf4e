// ABOUTME: Conversion of decoded media to the output device format
// ABOUTME: Channel mapping, resampling and 16-bit encoding
package media

import (
	"fmt"

	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio"
	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio/encode"
	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio/resample"
)

// toDevice converts buf to interleaved PCM in output.DeviceFormat
func toDevice(buf audio.Buffer) ([]byte, error) {
	target := output.DeviceFormat
	if buf.Format.Channels < 1 {
		return nil, fmt.Errorf("decoded audio has %d channels", buf.Format.Channels)
	}

	stereo := toStereo(buf.Samples, buf.Format.Channels)
	stereo = resample.All(stereo, buf.Format.SampleRate, target.SampleRate, target.Channels)

	enc, err := encode.NewPCM(audio.Format{Codec: "pcm", SampleRate: target.SampleRate, Channels: target.Channels, BitDepth: target.BitDepth})
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	return enc.Encode(stereo)
}

// toStereo duplicates mono and keeps the front pair of wider layouts
func toStereo(samples []int32, channels int) []int32 {
	switch channels {
	case 2:
		return samples
	case 1:
		out := make([]int32, len(samples)*2)
		for i, s := range samples {
			out[i*2] = s
			out[i*2+1] = s
		}
		return out
	default:
		frames := len(samples) / channels
		out := make([]int32, frames*2)
		for i := 0; i < frames; i++ {
			out[i*2] = samples[i*channels]
			out[i*2+1] = samples[i*channels+1]
		}
		return out
	}
}
