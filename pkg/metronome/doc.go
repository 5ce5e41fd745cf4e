// ABOUTME: Package metronome documentation
// ABOUTME: Real-time click synthesis and beat scheduling
// Package metronome synthesizes tick and tock clicks and streams them to an
// audio sink at a steady, adjustable tempo.
//
// An Engine runs at most one session at a time. Start validates the tempo and
// volume, renders both clicks, opens a sink and hands it to a scheduler
// goroutine locked to its own OS thread. The scheduler keeps the sink fed
// with silence between beats, writes a click whenever a beat falls due and
// restarts the sink if it stops playing underneath it.
//
// Tempo changes are observed within a couple of milliseconds. A change made
// partway through a beat keeps the elapsed fraction of that beat, so the
// next click lands where a listener expects an accelerating or slowing
// pulse rather than on a reset grid.
//
// Example:
//
//	engine := metronome.NewEngine(metronome.EngineConfig{})
//	if err := engine.Start(120, 0.5); err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Stop()
//
//	engine.SetBPM(96)
package metronome
