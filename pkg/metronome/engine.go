// ABOUTME: Metronome engine orchestration
// ABOUTME: Validates parameters, owns the sink and runs one scheduler session at a time
package metronome

import (
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio/output"
	"github.com/google/uuid"
)

const (
	defaultJoinTimeout  = 500 * time.Millisecond
	defaultOpenAttempts = 3
	openBackoff         = 50 * time.Millisecond

	// sinkGain is fixed; volume is rendered into the clicks
	sinkGain = 1.0
)

// EngineConfig holds engine dependencies. Zero values select defaults.
type EngineConfig struct {
	// NewSink opens a fresh sink for each session (default: oto backend)
	NewSink func() (output.Sink, error)

	// Clock drives beat timing (default: wall clock)
	Clock Clock

	// Rand seeds click noise (default: randomly seeded)
	Rand *rand.Rand

	// OnBeat is called on the scheduler goroutine after each click is queued.
	// It must not block.
	OnBeat func(Beat)

	JoinTimeout  time.Duration
	OpenAttempts int
	Debug        bool
}

// Stats is a snapshot of engine counters
type Stats struct {
	Session      string
	Running      bool
	BPM          float64
	Volume       float64
	BeatIndex    uint64
	BeatsEmitted uint64
	Recoveries   uint64
	WriteFaults  uint64
	Underruns    int64
}

// session is one Start..Stop run
type session struct {
	id        string
	sink      output.Sink
	scheduler *scheduler
	stats     *schedulerStats
}

// Engine is the metronome. Its methods are safe for concurrent use.
type Engine struct {
	config EngineConfig
	tempo  *TempoState
	synth  *Synthesizer
	clicks atomic.Pointer[clickSet]

	// mu serializes Start, Stop and click rendering; the scheduler never takes it
	mu     sync.Mutex
	active atomic.Pointer[session]
	last   atomic.Pointer[session]
}

// NewEngine creates an idle engine at the default tempo and volume
func NewEngine(config EngineConfig) *Engine {
	if config.NewSink == nil {
		config.NewSink = func() (output.Sink, error) { return output.NewSink("oto") }
	}
	if config.Clock == nil {
		config.Clock = systemClock{}
	}
	if config.JoinTimeout <= 0 {
		config.JoinTimeout = defaultJoinTimeout
	}
	if config.OpenAttempts <= 0 {
		config.OpenAttempts = defaultOpenAttempts
	}

	return &Engine{
		config: config,
		tempo:  newTempoState(),
		synth:  NewSynthesizer(config.Rand),
	}
}

// Start begins a session at bpm and volume, replacing any running one.
// On return the first click has been queued.
func (e *Engine) Start(bpm, volume float64) error {
	if err := ValidateBPM(bpm); err != nil {
		return err
	}
	if err := ValidateVolume(volume); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.stopLocked(); err != nil {
		log.Printf("Metronome: previous session: %v", err)
	}

	e.tempo.setBPM(bpm)
	e.tempo.setVolume(volume)
	e.tempo.beat.Store(0)
	e.clicks.Store(e.renderClicks(volume))

	sink, err := e.openSink()
	if err != nil {
		return err
	}
	sink.SetVolume(sinkGain)

	sess := &session{
		id:    uuid.New().String(),
		sink:  sink,
		stats: &schedulerStats{},
	}

	s := newScheduler(sink, e.tempo, &e.clicks, e.config.Clock, sess.stats)
	s.session = sess.id[:8]
	s.onBeat = e.config.OnBeat
	s.debug = e.config.Debug
	sess.scheduler = s

	e.tempo.running.Store(true)
	e.active.Store(sess)
	e.last.Store(sess)

	log.Printf("Metronome[%s]: starting at %.1f BPM, volume %.2f", s.session, bpm, volume)

	s.begin()
	go s.run()

	return nil
}

// openSink opens and starts a sink, retrying transient failures
func (e *Engine) openSink() (output.Sink, error) {
	var lastErr error

	for attempt := 1; attempt <= e.config.OpenAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(openBackoff)
		}

		sink, err := e.config.NewSink()
		if err != nil {
			lastErr = err
			log.Printf("Metronome: sink create attempt %d failed: %v", attempt, err)
			continue
		}

		if err := startSink(sink); err != nil {
			lastErr = err
			log.Printf("Metronome: sink open attempt %d failed: %v", attempt, err)
			if rerr := sink.Release(); rerr != nil {
				log.Printf("Metronome: sink release failed: %v", rerr)
			}
			continue
		}

		return sink, nil
	}

	return nil, fmt.Errorf("%w: %d attempts: %w", ErrDeviceFault, e.config.OpenAttempts, lastErr)
}

// startSink opens sink for mono PCM16 and checks that it reports playing
func startSink(sink output.Sink) error {
	if err := sink.Open(SampleRate, MonoFormat.Channels, MonoFormat.BitDepth); err != nil {
		return fmt.Errorf("open: %w", err)
	}

	for try := 0; try < 2; try++ {
		if err := sink.Start(); err != nil {
			return fmt.Errorf("start: %w", err)
		}
		if sink.State() == output.StatePlaying {
			return nil
		}
	}

	return fmt.Errorf("sink did not enter playing state (%s)", sink.State())
}

// Stop ends the session. Safe to call when idle.
// Returns an error wrapping ErrShutdownTimeout if the loop did not exit in
// time; the sink is released either way.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.stopLocked()
}

func (e *Engine) stopLocked() error {
	e.tempo.running.Store(false)

	sess := e.active.Swap(nil)
	if sess == nil {
		e.tempo.beat.Store(0)
		return nil
	}

	s := sess.scheduler
	haltErr := s.halt(e.config.JoinTimeout)
	if haltErr != nil {
		log.Printf("Metronome[%s]: %v, releasing sink anyway", s.session, haltErr)
		haltErr = fmt.Errorf("stop after %v: %w", e.config.JoinTimeout, haltErr)
	}

	if err := sess.sink.Stop(); err != nil {
		log.Printf("Metronome[%s]: sink stop: %v", s.session, err)
	}
	if err := sess.sink.Flush(); err != nil {
		log.Printf("Metronome[%s]: sink flush: %v", s.session, err)
	}
	if err := sess.sink.Release(); err != nil {
		log.Printf("Metronome[%s]: sink release: %v", s.session, err)
	}

	e.tempo.beat.Store(0)
	log.Printf("Metronome[%s]: stopped after %d beats", s.session, sess.stats.beats.Load())

	return haltErr
}

// SetBPM changes the tempo of the running or next session
func (e *Engine) SetBPM(bpm float64) error {
	if err := ValidateBPM(bpm); err != nil {
		return err
	}

	e.tempo.setBPM(bpm)
	if sess := e.active.Load(); sess != nil {
		sess.scheduler.Wake()
	}
	return nil
}

// SetVolume changes the click volume; a running session swaps in
// clicks rendered at the new level before its next beat.
func (e *Engine) SetVolume(volume float64) error {
	if err := ValidateVolume(volume); err != nil {
		return err
	}

	// Serialized with Start so a session never begins with stale clicks
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tempo.setVolume(volume)

	if e.active.Load() == nil {
		return nil
	}

	e.clicks.Store(e.renderClicks(volume))
	return nil
}

func (e *Engine) renderClicks(volume float64) *clickSet {
	return &clickSet{
		tick: e.synth.Synthesize(Tick, volume),
		tock: e.synth.Synthesize(Tock, volume),
	}
}

// Clicks returns the tick and tock as they would be rendered at volume
func (e *Engine) Clicks(volume float64) (tick, tock ClickBuffer) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cs := e.renderClicks(volume)
	return cs.tick, cs.tock
}

// Running reports whether a session is active
func (e *Engine) Running() bool {
	return e.tempo.Running()
}

// BPM returns the current tempo
func (e *Engine) BPM() float64 {
	return e.tempo.BPM()
}

// Volume returns the current volume
func (e *Engine) Volume() float64 {
	return e.tempo.Volume()
}

// BeatIndex returns the index of the next beat
func (e *Engine) BeatIndex() uint64 {
	return e.tempo.BeatIndex()
}

// Stats returns a snapshot of the engine counters. Counters belong to the
// current session, or to the most recent one while idle.
func (e *Engine) Stats() Stats {
	st := Stats{
		Running:   e.tempo.Running(),
		BPM:       e.tempo.BPM(),
		Volume:    e.tempo.Volume(),
		BeatIndex: e.tempo.BeatIndex(),
	}

	sess := e.last.Load()
	if sess == nil {
		return st
	}

	st.Session = sess.id
	st.BeatsEmitted = sess.stats.beats.Load()
	st.Recoveries = sess.stats.recoveries.Load()
	st.WriteFaults = sess.stats.faults.Load()

	if uc, ok := sess.sink.(output.UnderrunCounter); ok {
		st.Underruns = uc.Underruns()
	}
	return st
}
