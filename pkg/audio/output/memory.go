// ABOUTME: In-memory sink that records writes instead of playing them
// ABOUTME: Backs the "null" backend and lets tests inject device faults
package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio"
)

// Write is one recorded write call
type Write struct {
	Data     []byte
	Blocking bool
	At       time.Time
}

// Silent reports whether the write carried only zero samples
func (w Write) Silent() bool {
	for _, b := range w.Data {
		if b != 0 {
			return false
		}
	}
	return true
}

// Memory is a Sink that keeps everything it is given
type Memory struct {
	mu         sync.Mutex
	format     audio.Format
	opened     bool
	released   bool
	state      State
	volume     float64
	writes     []Write
	writeLimit int
	openFails  int
	starts     int
	stops      int
	flushes    int
	now        func() time.Time
}

// NewMemory creates an empty in-memory sink
func NewMemory() *Memory {
	return &Memory{
		state:  StateStopped,
		volume: 1.0,
		now:    time.Now,
	}
}

// SetClock replaces the timestamp source for recorded writes
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// FailOpen makes the next n calls to Open fail
func (m *Memory) FailOpen(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openFails = n
}

// SetWriteLimit caps the bytes accepted per write call (0 = unlimited)
func (m *Memory) SetWriteLimit(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeLimit = n
}

// ForceState overrides the reported state, simulating a device stall
func (m *Memory) ForceState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

// Open records the stream format
func (m *Memory) Open(sampleRate, channels, bitDepth int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.released {
		return ErrReleased
	}
	if m.openFails > 0 {
		m.openFails--
		return fmt.Errorf("memory sink: injected open failure")
	}
	if bitDepth != 16 {
		return fmt.Errorf("%w: %d-bit", ErrUnsupportedFormat, bitDepth)
	}

	m.format = audio.Format{Codec: "pcm", SampleRate: sampleRate, Channels: channels, BitDepth: bitDepth}
	m.opened = true
	return nil
}

// SetVolume records the gain
func (m *Memory) SetVolume(volume float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = volume
}

// Volume returns the last gain set
func (m *Memory) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// WriteBlocking records p (up to the write limit)
func (m *Memory) WriteBlocking(p []byte) (int, error) {
	return m.write(p, true)
}

// WriteNonBlocking records p (up to the write limit)
func (m *Memory) WriteNonBlocking(p []byte) (int, error) {
	return m.write(p, false)
}

func (m *Memory) write(p []byte, blocking bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.released {
		return 0, ErrReleased
	}
	if !m.opened {
		return 0, ErrNotInitialized
	}
	if m.state != StatePlaying {
		return 0, ErrNotPlaying
	}

	n := len(p)
	if m.writeLimit > 0 && n > m.writeLimit {
		n = m.writeLimit
	}
	if n == 0 {
		return 0, nil
	}

	data := make([]byte, n)
	copy(data, p[:n])
	m.writes = append(m.writes, Write{Data: data, Blocking: blocking, At: m.now()})
	return n, nil
}

// State returns the current state
func (m *Memory) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start marks the sink playing
func (m *Memory) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.released {
		return ErrReleased
	}
	if !m.opened {
		return ErrNotInitialized
	}
	m.starts++
	m.state = StatePlaying
	return nil
}

// Stop marks the sink stopped
func (m *Memory) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.state = StateStopped
	return nil
}

// Flush counts the call; recorded writes are kept for inspection
func (m *Memory) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return nil
}

// Release marks the sink released
func (m *Memory) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = true
	m.state = StateStopped
	return nil
}

// Released reports whether Release was called
func (m *Memory) Released() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

// MinBufferSize reports 40ms of the opened format (mono 44.1kHz before Open)
func (m *Memory) MinBufferSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	f := m.format
	if !m.opened {
		f = audio.Format{SampleRate: 44100, Channels: 1, BitDepth: 16}
	}
	return f.BytesFor(minBufferDuration)
}

// Writes returns a copy of the recorded writes
func (m *Memory) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Write(nil), m.writes...)
}

// SoundWrites returns the recorded writes that carried non-zero audio
func (m *Memory) SoundWrites() []Write {
	var out []Write
	for _, w := range m.Writes() {
		if !w.Silent() {
			out = append(out, w)
		}
	}
	return out
}

// Counts returns how many times Start, Stop and Flush were called
func (m *Memory) Counts() (starts, stops, flushes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts, m.stops, m.flushes
}

// Underruns is always zero; the memory sink never drains
func (m *Memory) Underruns() int64 {
	return 0
}
