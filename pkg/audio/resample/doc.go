// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts decoded media to the output device rate
// Package resample provides audio sample rate conversion.
//
// Uses linear interpolation for converting between sample rates and
// handles both upsampling and downsampling. A Resampler keeps the final
// frame of each chunk so consecutive chunks join without a click.
//
// Example:
//
//	r := resample.New(48000, 44100, 2)
//	out := make([]int32, r.OutputSamplesNeeded(len(in)))
//	n := r.Resample(in, out)
package resample
