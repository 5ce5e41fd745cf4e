// ABOUTME: Audio output package for streaming PCM to a device
// ABOUTME: Provides the Sink interface with oto and in-memory implementations
// Package output provides streaming audio sinks.
//
// The oto sink queues PCM in a ring buffer that a persistent oto player
// drains; writes never touch the device directly. The memory sink records
// writes and is used for headless runs and tests.
//
// Example:
//
//	sink, err := output.NewSink("oto")
//	err = sink.Open(44100, 1, 16)
//	err = sink.Start()
//	n, err := sink.WriteBlocking(pcm)
package output
