// ABOUTME: Error taxonomy for the metronome engine
// ABOUTME: Argument, device and shutdown errors surfaced to callers
package metronome

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when bpm or volume is out of range
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDeviceFault is returned when the audio sink cannot be opened or started
	ErrDeviceFault = errors.New("audio device fault")

	// ErrShutdownTimeout is returned by Stop when the scheduler did not exit in time.
	// Resources are released regardless.
	ErrShutdownTimeout = errors.New("scheduler shutdown timed out")
)

// RangeError reports a parameter outside its valid range
type RangeError struct {
	Param string
	Value float64
	Min   float64
	Max   float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %v out of range [%v, %v]", e.Param, e.Value, e.Min, e.Max)
}

// Unwrap makes RangeError match ErrInvalidArgument
func (e *RangeError) Unwrap() error {
	return ErrInvalidArgument
}
