// ABOUTME: Oto-based streaming sink implementation
// ABOUTME: Queues PCM in a ring buffer that a persistent oto player drains
package output

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

const (
	// minBufferDuration is the smallest queue the oto sink reports as safe
	minBufferDuration = 40 * time.Millisecond

	// ringDuration is the ring buffer capacity; bounds write-ahead latency
	ringDuration = 2 * minBufferDuration

	// spacePoll bounds each wait inside WriteBlocking so state changes are seen
	spacePoll = 10 * time.Millisecond
)

// Oto streams PCM through the shared oto context
type Oto struct {
	mu       sync.Mutex
	player   *oto.Player
	ring     *RingBuffer
	format   audio.Format
	minBytes int
	volume   float64
	released bool

	state     atomic.Int32
	written   atomic.Bool // set once audio has been queued; underruns before that don't count
	underruns atomic.Int64
	space     chan struct{}
}

// NewOto creates a new oto sink
func NewOto() Sink {
	o := &Oto{
		volume: 1.0,
		space:  make(chan struct{}, 1),
	}
	o.state.Store(int32(StateStopped))
	return o
}

// Open initializes the sink with the stream format.
// The sample rate must match the shared device; mono input is upmixed.
func (o *Oto) Open(sampleRate, channels, bitDepth int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.released {
		return ErrReleased
	}
	if o.player != nil {
		log.Printf("Audio output already open, reusing player")
		return nil
	}

	if bitDepth != 16 {
		return fmt.Errorf("%w: oto sink only streams 16-bit, got %d", ErrUnsupportedFormat, bitDepth)
	}
	if channels != 1 && channels != 2 {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, channels)
	}
	if sampleRate != DeviceFormat.SampleRate {
		return fmt.Errorf("%w: %dHz (device runs at %dHz)", ErrUnsupportedFormat, sampleRate, DeviceFormat.SampleRate)
	}

	ctx, err := SharedContext()
	if err != nil {
		return err
	}

	o.format = audio.Format{Codec: "pcm", SampleRate: sampleRate, Channels: channels, BitDepth: bitDepth}
	o.minBytes = o.format.BytesFor(minBufferDuration)
	o.ring = NewRingBuffer(max(2*o.minBytes, o.format.BytesFor(ringDuration)))

	o.player = ctx.NewPlayer(&otoStream{sink: o})
	o.player.SetBufferSize(DeviceFormat.BytesFor(minBufferDuration))
	o.player.SetVolume(o.volume)

	log.Printf("Audio output opened: %dHz, %d channels, ring=%d bytes, min=%d bytes",
		sampleRate, channels, o.ring.size, o.minBytes)

	return nil
}

// SetVolume sets the player gain (0..1)
func (o *Oto) SetVolume(volume float64) {
	volume = max(0, min(1, volume))

	o.mu.Lock()
	defer o.mu.Unlock()

	o.volume = volume
	if o.player != nil {
		o.player.SetVolume(volume)
	}
}

// WriteBlocking waits for ring space, then queues as much of p as fits
func (o *Oto) WriteBlocking(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for {
		if err := o.writable(); err != nil {
			return 0, err
		}

		if n := o.ring.Write(p, o.format.FrameSize()); n > 0 {
			o.written.Store(true)
			return n, nil
		}

		select {
		case <-o.space:
		case <-time.After(spacePoll):
		}
	}
}

// WriteNonBlocking queues as much of p as fits now
func (o *Oto) WriteNonBlocking(p []byte) (int, error) {
	if err := o.writable(); err != nil {
		return 0, err
	}
	n := o.ring.Write(p, o.format.FrameSize())
	if n > 0 {
		o.written.Store(true)
	}
	return n, nil
}

func (o *Oto) writable() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.released {
		return ErrReleased
	}
	if o.player == nil {
		return ErrNotInitialized
	}
	if o.stateLocked() != StatePlaying {
		return ErrNotPlaying
	}
	return nil
}

// State reports the sink state; a player that stopped on its own is an error
func (o *Oto) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

func (o *Oto) stateLocked() State {
	if o.player == nil {
		return StateStopped
	}
	if o.player.Err() != nil {
		return StateError
	}
	st := State(o.state.Load())
	if st == StatePlaying && !o.player.IsPlaying() {
		return StateError
	}
	return st
}

// Start begins playback
func (o *Oto) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.released {
		return ErrReleased
	}
	if o.player == nil {
		return ErrNotInitialized
	}
	o.player.Play()
	o.state.Store(int32(StatePlaying))
	return nil
}

// Stop pauses playback, keeping queued audio
func (o *Oto) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return nil
	}
	o.player.Pause()
	o.state.Store(int32(StateStopped))
	return nil
}

// Flush discards queued audio
func (o *Oto) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ring != nil {
		o.ring.Reset()
	}
	return nil
}

// Release closes the player
func (o *Oto) Release() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.released {
		return nil
	}
	o.released = true
	o.state.Store(int32(StateStopped))

	if o.player != nil {
		err := o.player.Close()
		o.player = nil
		if err != nil {
			return fmt.Errorf("failed to close oto player: %w", err)
		}
	}
	return nil
}

// MinBufferSize returns the minimum safe queue size in bytes
func (o *Oto) MinBufferSize() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.minBytes == 0 {
		return audio.Format{SampleRate: DeviceFormat.SampleRate, Channels: 1, BitDepth: 16}.BytesFor(minBufferDuration)
	}
	return o.minBytes
}

// Underruns returns how many device reads found the ring short
func (o *Oto) Underruns() int64 {
	return o.underruns.Load()
}

// otoStream is the io.Reader the oto player pulls from
type otoStream struct {
	sink    *Oto
	scratch []byte
}

// Read converts queued sink-format PCM into device-format PCM
func (s *otoStream) Read(p []byte) (int, error) {
	o := s.sink
	ring := o.ring

	var got, want int
	if o.format.Channels == 1 {
		frames := len(p) / DeviceFormat.FrameSize()
		want = frames * 2
		if cap(s.scratch) < want {
			s.scratch = make([]byte, want)
		}
		mono := s.scratch[:want]
		got = ring.Read(mono)

		for i := 0; i < frames; i++ {
			lo, hi := mono[i*2], mono[i*2+1]
			p[i*4], p[i*4+1] = lo, hi
			p[i*4+2], p[i*4+3] = lo, hi
		}
		clear(p[frames*4:])
	} else {
		want = len(p)
		got = ring.Read(p)
	}

	if got < want && o.written.Load() && State(o.state.Load()) == StatePlaying {
		o.underruns.Add(1)
	}

	select {
	case o.space <- struct{}{}:
	default:
	}

	return len(p), nil
}
