// ABOUTME: Procedural click synthesis for the tick and tock sounds
// ABOUTME: Noise burst plus enveloped square tone, shaped and quantized to PCM16
package metronome

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio"
)

const (
	// SampleRate of every click and of the stream handed to the sink
	SampleRate = 44100

	// ClickDuration is the length of one synthesized click
	ClickDuration = 40 * time.Millisecond

	// ClickSamples is ClickDuration at SampleRate
	ClickSamples = SampleRate * int(ClickDuration/time.Millisecond) / 1000

	// ClickBytes is the PCM16 mono size of one click
	ClickBytes = ClickSamples * audio.BytesPerSample16
)

// Noise layer: 1ms linear attack to 0.7, exponential decay to 0.001 by 30ms
const (
	noiseEnd    = 0.030
	noiseAttack = 0.001
	noisePeak   = 0.7
	noiseLevel  = 0.7
)

// Tone layer: 2ms linear attack to 0.5, exponential decay to 0.001 by 40ms
const (
	toneEnd    = 0.040
	toneAttack = 0.002
	tonePeak   = 0.5
	toneLevel  = 0.5
)

const (
	envelopeFloor = 0.001
	filterQ       = 12.0
	headroom      = 1.2
)

// MonoFormat is the PCM format of clicks and silence
var MonoFormat = audio.Format{Codec: "pcm", SampleRate: SampleRate, Channels: 1, BitDepth: 16}

// Role distinguishes the accented and unaccented click
type Role int

const (
	Tick Role = iota
	Tock
)

func (r Role) String() string {
	if r == Tick {
		return "tick"
	}
	return "tock"
}

// RoleForBeat returns Tick for even beats and Tock for odd ones
func RoleForBeat(index uint64) Role {
	if index%2 == 0 {
		return Tick
	}
	return Tock
}

// voice holds the per-role tone frequency and filter cutoff
type voice struct {
	toneHz   float64
	cutoffHz float64
}

func voiceFor(role Role) voice {
	if role == Tick {
		return voice{toneHz: 2400, cutoffHz: 2800}
	}
	return voice{toneHz: 1600, cutoffHz: 1800}
}

// ClickBuffer is one synthesized click as PCM16 little-endian mono.
// The zero value is an empty buffer.
type ClickBuffer struct {
	role Role
	pcm  []byte
}

// Role returns whether this is the tick or the tock
func (c ClickBuffer) Role() Role {
	return c.role
}

// Len returns the size in bytes
func (c ClickBuffer) Len() int {
	return len(c.pcm)
}

// Bytes returns a copy of the PCM data
func (c ClickBuffer) Bytes() []byte {
	return append([]byte(nil), c.pcm...)
}

// Samples decodes the buffer into int16 samples
func (c ClickBuffer) Samples() []int16 {
	return audio.DecodeInt16LE(c.pcm)
}

// Peak returns the largest absolute sample value
func (c ClickBuffer) Peak() int {
	peak := 0
	for _, s := range c.Samples() {
		v := int(s)
		if v < 0 {
			v = -v
		}
		peak = max(peak, v)
	}
	return peak
}

// Synthesizer renders clicks. Safe for concurrent use.
type Synthesizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSynthesizer creates a synthesizer drawing noise from rng.
// A nil rng uses a randomly seeded source.
func NewSynthesizer(rng *rand.Rand) *Synthesizer {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Synthesizer{rng: rng}
}

// Synthesize renders one click for role at volume (0..1)
func (s *Synthesizer) Synthesize(role Role, volume float64) ClickBuffer {
	samples := make([]int16, ClickSamples)
	for i, v := range s.render(role, volume) {
		samples[i] = audio.QuantizeInt16(v)
	}
	return ClickBuffer{role: role, pcm: audio.EncodeInt16LE(samples)}
}

// render produces the clamped float samples before quantization
func (s *Synthesizer) render(role Role, volume float64) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := voiceFor(role)
	gain := highPassGain(v.toneHz, v.cutoffHz, filterQ) * volume * headroom

	out := make([]float64, ClickSamples)
	for i := range out {
		t := float64(i) / SampleRate
		sample := 0.0

		if t < noiseEnd {
			noise := s.rng.Float64()*2 - 1
			sample += noise * noiseEnvelope(t) * noiseLevel
		}
		if t < toneEnd {
			sample += squareWave(t, v.toneHz) * toneEnvelope(t) * toneLevel
		}

		out[i] = max(-1, min(1, sample*gain))
	}
	return out
}

// squareWave is +1 for the first half of each period and -1 for the second
func squareWave(t, freq float64) float64 {
	phase := math.Mod(t*freq, 1)
	if phase < 0.5 {
		return 1
	}
	return -1
}

func noiseEnvelope(t float64) float64 {
	switch {
	case t < noiseAttack:
		return noisePeak * (t / noiseAttack)
	case t < noiseEnd:
		return expDecay(noisePeak, envelopeFloor, noiseEnd-noiseAttack, t-noiseAttack)
	default:
		return 0
	}
}

func toneEnvelope(t float64) float64 {
	switch {
	case t < toneAttack:
		return tonePeak * (t / toneAttack)
	case t < toneEnd:
		return expDecay(tonePeak, envelopeFloor, toneEnd-toneAttack, t-toneAttack)
	default:
		return 0
	}
}

// expDecay falls from start at elapsed=0 to floor at elapsed=duration
func expDecay(start, floor, duration, elapsed float64) float64 {
	return start * math.Exp(-(elapsed/duration)*math.Log(start/floor))
}

// highPassGain is a shelving approximation of a resonant high-pass at cutoff.
// It is the intended click timbre, not a filter transfer function.
func highPassGain(freq, cutoff, q float64) float64 {
	if freq < cutoff {
		ratio := freq / cutoff
		return ratio * ratio * q * 0.1
	}
	return 1 + (q-1)*0.1
}
