// ABOUTME: Audio sink interface definition
// ABOUTME: Common interface for streaming PCM output backends
package output

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned when a sink is used before Open
	ErrNotInitialized = errors.New("output not initialized")

	// ErrNotPlaying is returned by writes while the sink is not in StatePlaying
	ErrNotPlaying = errors.New("output not playing")

	// ErrUnsupportedFormat is returned by Open for formats the backend cannot stream
	ErrUnsupportedFormat = errors.New("unsupported output format")

	// ErrReleased is returned when a sink is used after Release
	ErrReleased = errors.New("output released")
)

// State is the playback state reported by a sink
type State int

const (
	StateStopped State = iota
	StatePlaying
	StateError
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Sink is a streaming PCM output device.
//
// Writes accept little-endian signed 16-bit PCM in the format given to Open.
// A sink may accept fewer bytes than offered; callers loop on partial writes.
type Sink interface {
	// Open prepares the device; the sink is stopped until Start
	Open(sampleRate, channels, bitDepth int) error

	// SetVolume sets the device gain (0..1)
	SetVolume(volume float64)

	// WriteBlocking waits until at least one frame fits, then queues as much of p as fits
	WriteBlocking(p []byte) (int, error)

	// WriteNonBlocking queues as much of p as fits right now
	WriteNonBlocking(p []byte) (int, error)

	// State reports the device state
	State() State

	// Start begins (or resumes) playback
	Start() error

	// Stop halts playback, keeping queued audio
	Stop() error

	// Flush discards queued audio
	Flush() error

	// Release frees the device; the sink cannot be reopened
	Release() error

	// MinBufferSize is the smallest queue (in bytes) that avoids underruns
	MinBufferSize() int
}

// UnderrunCounter is implemented by sinks that track device underruns
type UnderrunCounter interface {
	Underruns() int64
}

// NewSink creates a sink for the named backend ("oto" or "null")
func NewSink(backend string) (Sink, error) {
	switch backend {
	case "", "oto":
		return NewOto(), nil
	case "null", "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown output backend: %q", backend)
	}
}
