// ABOUTME: Beat scheduler loop that feeds clicks and silence to the sink
// ABOUTME: Phase-preserving tempo changes, drift correction and sink recovery
package metronome

import (
	"errors"
	"log"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio/output"
)

const (
	// minSleep and maxSleep bound the loop's idle wait between iterations
	minSleep = 1 * time.Millisecond
	maxSleep = 2 * time.Millisecond

	// minRemaining floors a rescheduled wait so a tempo jump never fires instantly
	minRemaining = 1 * time.Millisecond

	// topUpThreshold is how far ahead of a beat silence top-ups stop
	topUpThreshold = 50 * time.Millisecond

	// primeBuffers is how many MinBufferSize blocks of silence precede the first beat
	primeBuffers = 2
)

var errNoProgress = errors.New("sink accepted zero bytes")

// Clock supplies the scheduler's notion of now
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Beat describes one emitted click
type Beat struct {
	Index uint64
	Role  Role
	At    time.Time
}

// BeatInterval returns the time between beats at bpm
func BeatInterval(bpm float64) time.Duration {
	return time.Duration(60 / bpm * float64(time.Second))
}

// BeatTimeline is the scheduler-local timing state of one session
type BeatTimeline struct {
	NextDeadline time.Time
	LastBeat     time.Time
	LastBPM      float64
}

// Reschedule moves the next deadline after a tempo change observed at now.
// Mid-interval the remaining wait is the new interval scaled by the fraction
// of the previous tempo's interval still to go, floored at minRemaining. At or
// past the deadline a fresh interval starts; step never gets here with a due
// beat, since advance already schedules from the new tempo.
func (tl *BeatTimeline) Reschedule(now time.Time, bpm float64) {
	next := BeatInterval(bpm)

	if now.Before(tl.NextDeadline) {
		p := max(0, float64(now.Sub(tl.LastBeat))/float64(BeatInterval(tl.LastBPM)))
		remaining := max(time.Duration(float64(next)*(1-p)), minRemaining)
		tl.NextDeadline = now.Add(remaining)
	} else {
		tl.NextDeadline = now.Add(next)
	}

	tl.LastBPM = bpm
}

// advance records a beat emitted at now and schedules the following one.
// Deadlines stay on the nominal grid unless the loop fell a whole beat behind.
func (tl *BeatTimeline) advance(now time.Time, bpm float64) {
	interval := BeatInterval(bpm)
	next := tl.NextDeadline.Add(interval)

	if next.After(now) {
		tl.LastBeat = tl.NextDeadline
	} else {
		tl.LastBeat = now
		next = now.Add(interval)
	}

	tl.NextDeadline = next
	tl.LastBPM = bpm
}

// clickSet is swapped as a whole when volume changes
type clickSet struct {
	tick ClickBuffer
	tock ClickBuffer
}

func (cs *clickSet) forRole(role Role) ClickBuffer {
	if role == Tick {
		return cs.tick
	}
	return cs.tock
}

// schedulerStats are written by the loop and read by Engine.Stats
type schedulerStats struct {
	beats      atomic.Uint64
	recoveries atomic.Uint64
	faults     atomic.Uint64
}

// scheduler drives one metronome session
type scheduler struct {
	sink    output.Sink
	tempo   *TempoState
	clicks  *atomic.Pointer[clickSet]
	clock   Clock
	stats   *schedulerStats
	onBeat  func(Beat)
	session string
	debug   bool

	timeline BeatTimeline
	silence  []byte

	wake chan struct{}
	done chan struct{}
}

func newScheduler(sink output.Sink, tempo *TempoState, clicks *atomic.Pointer[clickSet], clock Clock, stats *schedulerStats) *scheduler {
	return &scheduler{
		sink:   sink,
		tempo:  tempo,
		clicks: clicks,
		clock:  clock,
		stats:  stats,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// begin primes the sink and emits beat 0. Runs on the caller's goroutine
// so Start returns with the first click already queued.
func (s *scheduler) begin() {
	s.silence = make([]byte, s.sink.MinBufferSize())

	for range primeBuffers {
		if err := s.writeAll(s.silence); err != nil {
			log.Printf("Metronome[%s]: prime failed: %v", s.session, err)
			break
		}
	}

	now := s.clock.Now()
	s.timeline = BeatTimeline{
		NextDeadline: now,
		LastBeat:     now,
		LastBPM:      s.tempo.BPM(),
	}
	s.emit(now)
}

// run is the timing loop. It owns an OS thread for its lifetime.
func (s *scheduler) run() {
	defer close(s.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := raisePriority(); err != nil {
		log.Printf("Metronome[%s]: running at normal priority: %v", s.session, err)
	}

	timer := time.NewTimer(maxSleep)
	defer timer.Stop()

	for s.tempo.Running() {
		s.step(s.clock.Now())

		if !s.tempo.Running() {
			break
		}

		wait := s.timeline.NextDeadline.Sub(s.clock.Now())
		timer.Reset(max(minSleep, min(maxSleep, wait)))

		select {
		case <-timer.C:
		case <-s.wake:
		}
	}

	if s.debug {
		log.Printf("Metronome[%s]: loop exited after %d beats", s.session, s.stats.beats.Load())
	}
}

// step runs one loop iteration at now
func (s *scheduler) step(now time.Time) {
	due := !now.Before(s.timeline.NextDeadline)

	// A change that lands on a due beat is picked up by advance instead,
	// so the beat is not pushed back a whole interval.
	if bpm := s.tempo.BPM(); bpm != s.timeline.LastBPM && !due {
		old := s.timeline.LastBPM
		s.timeline.Reschedule(now, bpm)
		if s.debug {
			log.Printf("Metronome[%s]: tempo %.1f -> %.1f, next beat in %v",
				s.session, old, bpm, s.timeline.NextDeadline.Sub(now))
		}
	}

	if due {
		s.emit(now)
		return
	}

	if remaining := s.timeline.NextDeadline.Sub(now); remaining > topUpThreshold {
		s.topUp(remaining)
	}
}

// emit writes the next click and advances the timeline
func (s *scheduler) emit(now time.Time) {
	if state := s.sink.State(); state != output.StatePlaying {
		s.recover(state)
	}

	index := s.tempo.beat.Load()
	role := RoleForBeat(index)
	click := s.clicks.Load().forRole(role)

	if err := s.writeAll(click.pcm); err != nil {
		s.stats.faults.Add(1)
		log.Printf("Metronome[%s]: beat %d write failed: %v", s.session, index, err)
	}

	s.tempo.beat.Add(1)
	s.stats.beats.Add(1)

	at := s.timeline.NextDeadline
	s.timeline.advance(now, s.tempo.BPM())

	if s.debug {
		log.Printf("Metronome[%s]: beat %d %s (late %v)", s.session, index, role, now.Sub(at))
	}

	if s.onBeat != nil {
		s.onBeat(Beat{Index: index, Role: role, At: now})
	}
}

// recover restarts a sink found outside the playing state and re-primes it
func (s *scheduler) recover(state output.State) {
	s.stats.recoveries.Add(1)
	log.Printf("Metronome[%s]: sink %s while running, restarting", s.session, state)

	if err := s.sink.Stop(); err != nil {
		log.Printf("Metronome[%s]: sink stop failed: %v", s.session, err)
	}
	if err := s.sink.Start(); err != nil {
		log.Printf("Metronome[%s]: sink restart failed: %v", s.session, err)
		return
	}
	if err := s.writeAll(s.silence); err != nil {
		log.Printf("Metronome[%s]: re-prime failed: %v", s.session, err)
	}
}

// topUp queues silence for the time left before the next beat without blocking
func (s *scheduler) topUp(remaining time.Duration) {
	n := min(len(s.silence), MonoFormat.BytesFor(remaining))
	if n <= 0 {
		return
	}
	if _, err := s.sink.WriteNonBlocking(s.silence[:n]); err != nil && s.debug {
		log.Printf("Metronome[%s]: silence top-up failed: %v", s.session, err)
	}
}

// writeAll pushes data to the sink, looping on partial writes.
// Returns early without error if the session stops mid-write.
func (s *scheduler) writeAll(data []byte) error {
	for off := 0; off < len(data); {
		if !s.tempo.Running() {
			return nil
		}

		n, err := s.sink.WriteBlocking(data[off:])
		if err != nil {
			return err
		}
		if n <= 0 {
			return errNoProgress
		}
		off += n
	}
	return nil
}

// Wake interrupts the loop's sleep
func (s *scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// halt waits for the loop to exit after running has been cleared
func (s *scheduler) halt(timeout time.Duration) error {
	s.Wake()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.done:
		return nil
	case <-timer.C:
		return ErrShutdownTimeout
	}
}
