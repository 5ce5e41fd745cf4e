// ABOUTME: Linear resampler for converting audio sample rates
// ABOUTME: Carries the last frame across chunks so streams resample seamlessly
package resample

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64 // read head in input frames, relative to the carried frame when primed
	lastFrame  []int32 // final frame of the previous chunk
	primed     bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		lastFrame:  make([]int32, channels),
	}
}

// Resample converts interleaved input at inputRate to interleaved output at
// outputRate and returns the number of samples written. Size output with
// OutputSamplesNeeded; input that does not fit is dropped.
func (r *Resampler) Resample(input []int32, output []int32) int {
	inputFrames := len(input) / r.channels
	if inputFrames == 0 {
		return 0
	}
	outputFrames := len(output) / r.channels

	// With a carried frame, index -1 refers to it
	base := 0
	if r.primed {
		base = -1
	}
	frame := func(idx, ch int) int32 {
		if idx < 0 {
			return r.lastFrame[ch]
		}
		return input[idx*r.channels+ch]
	}

	outIdx := 0
	for outIdx < outputFrames {
		whole := int(r.position)
		idx := whole + base
		if idx+1 >= inputFrames {
			break
		}

		frac := r.position - float64(whole)
		for ch := 0; ch < r.channels; ch++ {
			s1 := float64(frame(idx, ch))
			s2 := float64(frame(idx+1, ch))
			output[outIdx*r.channels+ch] = int32(s1*(1.0-frac) + s2*frac)
		}

		outIdx++
		r.position += r.ratio
	}

	// Rebase so the last frame of this chunk becomes index -1 of the next
	r.position = max(0, r.position-float64(inputFrames-1-base))
	copy(r.lastFrame, input[(inputFrames-1)*r.channels:inputFrames*r.channels])
	r.primed = true

	return outIdx * r.channels
}

// Reset clears carried state before an unrelated stream
func (r *Resampler) Reset() {
	r.position = 0
	r.primed = false
	for i := range r.lastFrame {
		r.lastFrame[i] = 0
	}
}

// OutputSamplesNeeded returns an output size sufficient for inputSamples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(float64(inputFrames)/r.ratio) + 2
	return outputFrames * r.channels
}

// InputSamplesNeeded calculates how many input samples are needed to produce output samples
func (r *Resampler) InputSamplesNeeded(outputSamples int) int {
	outputFrames := outputSamples / r.channels
	inputFrames := int(float64(outputFrames) * r.ratio)
	return inputFrames * r.channels
}

// All resamples a complete interleaved buffer in one call
func All(input []int32, inputRate, outputRate, channels int) []int32 {
	if inputRate == outputRate {
		return append([]int32(nil), input...)
	}

	r := New(inputRate, outputRate, channels)
	output := make([]int32, r.OutputSamplesNeeded(len(input)))
	n := r.Resample(input, output)
	return output[:n]
}
