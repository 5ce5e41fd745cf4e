// ABOUTME: Shared tempo state read by the scheduler and written by callers
// ABOUTME: Lock-free atomic cells plus parameter validation
package metronome

import (
	"math"
	"sync/atomic"
)

const (
	MinBPM = 40.0
	MaxBPM = 240.0

	MinVolume = 0.0
	MaxVolume = 1.0

	DefaultBPM    = 60.0
	DefaultVolume = 0.5
)

// ValidateBPM checks bpm against [MinBPM, MaxBPM]
func ValidateBPM(bpm float64) error {
	if math.IsNaN(bpm) || bpm < MinBPM || bpm > MaxBPM {
		return &RangeError{Param: "bpm", Value: bpm, Min: MinBPM, Max: MaxBPM}
	}
	return nil
}

// ValidateVolume checks volume against [MinVolume, MaxVolume]
func ValidateVolume(volume float64) error {
	if math.IsNaN(volume) || volume < MinVolume || volume > MaxVolume {
		return &RangeError{Param: "volume", Value: volume, Min: MinVolume, Max: MaxVolume}
	}
	return nil
}

// TempoState is shared between the caller and the scheduler thread.
// Values are validated before they are stored.
type TempoState struct {
	bpm     atomic.Uint64 // math.Float64bits
	volume  atomic.Uint64 // math.Float64bits
	running atomic.Bool
	beat    atomic.Uint64
}

func newTempoState() *TempoState {
	ts := &TempoState{}
	ts.setBPM(DefaultBPM)
	ts.setVolume(DefaultVolume)
	return ts
}

// BPM returns the current tempo
func (ts *TempoState) BPM() float64 {
	return math.Float64frombits(ts.bpm.Load())
}

// Volume returns the current volume
func (ts *TempoState) Volume() float64 {
	return math.Float64frombits(ts.volume.Load())
}

// Running reports whether a scheduler session is active
func (ts *TempoState) Running() bool {
	return ts.running.Load()
}

// BeatIndex returns the index of the next beat to be emitted
func (ts *TempoState) BeatIndex() uint64 {
	return ts.beat.Load()
}

func (ts *TempoState) setBPM(bpm float64) {
	ts.bpm.Store(math.Float64bits(bpm))
}

func (ts *TempoState) setVolume(volume float64) {
	ts.volume.Store(math.Float64bits(volume))
}
