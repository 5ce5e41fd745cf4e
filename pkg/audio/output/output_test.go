// ABOUTME: Audio output tests
// ABOUTME: Verifies sink implementations, ring buffer and device stream conversion
package output

import (
	"errors"
	"testing"

	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio"
)

func TestSinksImplementInterface(t *testing.T) {
	var _ Sink = (*Oto)(nil)
	var _ Sink = (*Memory)(nil)
	var _ UnderrunCounter = (*Oto)(nil)
	var _ UnderrunCounter = (*Memory)(nil)
}

func TestNewSink(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{"", false},
		{"oto", false},
		{"null", false},
		{"memory", false},
		{"alsa", true},
	}

	for _, tt := range tests {
		sink, err := NewSink(tt.backend)
		if tt.wantErr {
			if err == nil {
				t.Errorf("backend %q: expected error", tt.backend)
			}
			continue
		}
		if err != nil || sink == nil {
			t.Errorf("backend %q: unexpected error %v", tt.backend, err)
		}
	}
}

func TestStateString(t *testing.T) {
	if StatePlaying.String() != "playing" || StateStopped.String() != "stopped" || StateError.String() != "error" {
		t.Error("unexpected state names")
	}
	if State(9).String() != "State(9)" {
		t.Errorf("unexpected unknown state name %q", State(9).String())
	}
}

func TestRingBufferWrapAround(t *testing.T) {
	rb := NewRingBuffer(8)

	if n := rb.Write([]byte{1, 2, 3, 4, 5, 6}, 1); n != 6 {
		t.Fatalf("expected 6 written, got %d", n)
	}

	out := make([]byte, 4)
	if n := rb.Read(out); n != 4 {
		t.Fatalf("expected 4 read, got %d", n)
	}

	// Wraps past the end of the backing array
	if n := rb.Write([]byte{7, 8, 9, 10, 11, 12}, 1); n != 6 {
		t.Fatalf("expected 6 written after wrap, got %d", n)
	}
	if rb.Free() != 0 || rb.Available() != 8 {
		t.Fatalf("expected full buffer, free=%d available=%d", rb.Free(), rb.Available())
	}

	all := make([]byte, 8)
	rb.Read(all)
	want := []byte{5, 6, 7, 8, 9, 10, 11, 12}
	for i := range want {
		if all[i] != want[i] {
			t.Fatalf("byte %d: expected %d, got %d", i, want[i], all[i])
		}
	}
}

func TestRingBufferAlignment(t *testing.T) {
	rb := NewRingBuffer(7)

	// Only whole 2-byte frames are accepted
	if n := rb.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8}, 2); n != 6 {
		t.Errorf("expected 6 aligned bytes, got %d", n)
	}
	if n := rb.Write([]byte{9, 10}, 2); n != 0 {
		t.Errorf("expected no room for a frame, got %d", n)
	}
}

func TestRingBufferZeroFillsOnUnderrun(t *testing.T) {
	rb := NewRingBuffer(16)
	rb.Write([]byte{1, 2}, 1)

	out := []byte{9, 9, 9, 9}
	if n := rb.Read(out); n != 2 {
		t.Fatalf("expected 2 read, got %d", n)
	}
	if out[2] != 0 || out[3] != 0 {
		t.Errorf("expected zero fill, got %v", out)
	}

	rb.Write([]byte{1, 2, 3}, 1)
	rb.Reset()
	if rb.Available() != 0 {
		t.Errorf("expected empty buffer after reset, got %d", rb.Available())
	}
}

func TestOtoStreamUpmixesMono(t *testing.T) {
	o := NewOto().(*Oto)
	o.format = audio.Format{Codec: "pcm", SampleRate: 44100, Channels: 1, BitDepth: 16}
	o.ring = NewRingBuffer(64)
	o.state.Store(int32(StatePlaying))

	o.ring.Write([]byte{0x01, 0x02, 0x03, 0x04}, 2)
	o.written.Store(true)

	stream := &otoStream{sink: o}
	p := make([]byte, 16) // 4 stereo frames
	n, err := stream.Read(p)
	if err != nil || n != len(p) {
		t.Fatalf("expected full read, got n=%d err=%v", n, err)
	}

	want := []byte{0x01, 0x02, 0x01, 0x02, 0x03, 0x04, 0x03, 0x04, 0, 0, 0, 0, 0, 0, 0, 0}
	for i := range want {
		if p[i] != want[i] {
			t.Fatalf("byte %d: expected %#x, got %#x", i, want[i], p[i])
		}
	}

	// Two frames were missing while playing
	if o.Underruns() != 1 {
		t.Errorf("expected 1 underrun, got %d", o.Underruns())
	}
}

func TestOtoOpenRejectsFormats(t *testing.T) {
	tests := []struct {
		name                           string
		sampleRate, channels, bitDepth int
	}{
		{"24-bit", 44100, 1, 24},
		{"surround", 44100, 6, 16},
		{"wrong rate", 48000, 1, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewOto().Open(tt.sampleRate, tt.channels, tt.bitDepth)
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("expected ErrUnsupportedFormat, got %v", err)
			}
		})
	}
}

func TestOtoUnopenedSink(t *testing.T) {
	o := NewOto()

	if o.State() != StateStopped {
		t.Errorf("expected stopped, got %v", o.State())
	}
	if _, err := o.WriteNonBlocking([]byte{0, 0}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
	if err := o.Start(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized from Start, got %v", err)
	}
	if o.MinBufferSize() != 3528 {
		t.Errorf("expected default min buffer 3528, got %d", o.MinBufferSize())
	}
	if err := o.Release(); err != nil {
		t.Errorf("release of unopened sink failed: %v", err)
	}
	if err := o.Open(44100, 1, 16); !errors.Is(err, ErrReleased) {
		t.Errorf("expected ErrReleased after release, got %v", err)
	}
}

func TestMemorySinkLifecycle(t *testing.T) {
	m := NewMemory()

	if _, err := m.WriteBlocking([]byte{1, 2}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}

	if err := m.Open(44100, 1, 16); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := m.WriteBlocking([]byte{1, 2}); !errors.Is(err, ErrNotPlaying) {
		t.Fatalf("expected ErrNotPlaying before Start, got %v", err)
	}

	if err := m.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if n, err := m.WriteBlocking([]byte{1, 2}); n != 2 || err != nil {
		t.Fatalf("expected 2 bytes written, got %d, %v", n, err)
	}
	if n, _ := m.WriteNonBlocking([]byte{0, 0, 0, 0}); n != 4 {
		t.Fatalf("expected 4 bytes written, got %d", n)
	}

	writes := m.Writes()
	if len(writes) != 2 || !writes[0].Blocking || writes[1].Blocking {
		t.Fatalf("unexpected writes: %+v", writes)
	}
	if len(m.SoundWrites()) != 1 {
		t.Errorf("expected 1 non-silent write, got %d", len(m.SoundWrites()))
	}

	m.ForceState(StateError)
	if m.State() != StateError {
		t.Errorf("expected forced error state")
	}

	m.Stop()
	m.Flush()
	m.Release()
	starts, stops, flushes := m.Counts()
	if starts != 1 || stops != 1 || flushes != 1 || !m.Released() {
		t.Errorf("unexpected counts: starts=%d stops=%d flushes=%d released=%v", starts, stops, flushes, m.Released())
	}
}

func TestMemorySinkInjectedFaults(t *testing.T) {
	m := NewMemory()
	m.FailOpen(2)

	for i := 0; i < 2; i++ {
		if err := m.Open(44100, 1, 16); err == nil {
			t.Fatalf("open %d: expected injected failure", i)
		}
	}
	if err := m.Open(44100, 1, 16); err != nil {
		t.Fatalf("third open should succeed: %v", err)
	}

	m.Start()
	m.SetWriteLimit(3)
	if n, _ := m.WriteBlocking(make([]byte, 10)); n != 3 {
		t.Errorf("expected write limited to 3, got %d", n)
	}
	if m.MinBufferSize() != 3528 {
		t.Errorf("expected 3528 min buffer, got %d", m.MinBufferSize())
	}
}
