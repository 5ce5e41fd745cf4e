// ABOUTME: One-shot media player for bundled assets and remote audio
// ABOUTME: A new play releases the previous one; results arrive on a channel
package media

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio/decode"
)

// completionPoll is how often a playing track is checked for completion
const completionPoll = 20 * time.Millisecond

var (
	// ErrInterrupted resolves a play that was stopped or replaced
	ErrInterrupted = errors.New("playback interrupted")

	// ErrPlayback wraps failures while loading or playing a track
	ErrPlayback = errors.New("failed to play audio")
)

// Config holds player dependencies
type Config struct {
	AssetsDir string
	CacheTTL  time.Duration
	NewTrack  TrackFactory
}

// Player plays one sound at a time
type Player struct {
	resolver *Resolver
	fetcher  *Fetcher
	newTrack TrackFactory

	mu      sync.Mutex
	current *playback
}

// playback is one Play call, from loading through completion
type playback struct {
	uri    string
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	track  Track
	paused bool
}

// NewPlayer creates a player
func NewPlayer(config Config) *Player {
	if config.NewTrack == nil {
		config.NewTrack = NewOtoTrack
	}
	return &Player{
		resolver: NewResolver(config.AssetsDir),
		fetcher:  NewFetcher(config.CacheTTL),
		newTrack: config.NewTrack,
	}
}

// Fetcher exposes the download cache
func (p *Player) Fetcher() *Fetcher {
	return p.fetcher
}

// Play starts uri and releases whatever was playing before. The returned
// channel receives exactly one value: nil on completion, ErrInterrupted if
// the play is stopped or replaced, or an error wrapping ErrPlayback or
// ErrResourceNotFound.
func (p *Player) Play(ctx context.Context, uri string, isLocalResource bool) <-chan error {
	result := make(chan error, 1)

	ctx, cancel := context.WithCancel(ctx)
	pb := &playback{uri: uri, cancel: cancel, done: make(chan struct{})}

	p.mu.Lock()
	prev := p.current
	p.current = pb
	p.mu.Unlock()

	if prev != nil {
		prev.release()
	}

	go func() {
		defer close(pb.done)
		err := p.run(ctx, pb, isLocalResource)
		if err != nil && !errors.Is(err, ErrInterrupted) {
			log.Printf("Media playback error for %s: %v", uri, err)
		}
		p.clear(pb)
		result <- err
	}()

	return result
}

// Pause pauses the current track, if any
func (p *Player) Pause() {
	if pb := p.active(); pb != nil {
		pb.mu.Lock()
		defer pb.mu.Unlock()
		pb.paused = true
		if pb.track != nil {
			pb.track.Pause()
		}
	}
}

// Resume continues a paused track
func (p *Player) Resume() {
	if pb := p.active(); pb != nil {
		pb.mu.Lock()
		defer pb.mu.Unlock()
		if pb.track != nil && pb.paused {
			pb.track.Play()
		}
		pb.paused = false
	}
}

// Stop stops and releases the current track
func (p *Player) Stop() {
	p.mu.Lock()
	pb := p.current
	p.current = nil
	p.mu.Unlock()

	if pb != nil {
		pb.release()
	}
}

// Playing reports the uri of the current play, if any
func (p *Player) Playing() (string, bool) {
	pb := p.active()
	if pb == nil {
		return "", false
	}
	return pb.uri, true
}

func (p *Player) active() *playback {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Player) clear(pb *playback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == pb {
		p.current = nil
	}
}

// release cancels pb and waits for its track to close
func (pb *playback) release() {
	pb.cancel()
	<-pb.done
}

func (p *Player) run(ctx context.Context, pb *playback, isLocalResource bool) error {
	pcm, err := p.load(ctx, pb.uri, isLocalResource)
	if err != nil {
		if ctx.Err() != nil {
			return ErrInterrupted
		}
		return err
	}

	track, err := p.newTrack(pcm)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPlayback, err)
	}
	defer track.Close()

	pb.mu.Lock()
	pb.track = track
	if !pb.paused {
		track.Play()
	}
	pb.mu.Unlock()

	log.Printf("Media playing: %s (%d bytes)", pb.uri, len(pcm))

	ticker := time.NewTicker(completionPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			track.Pause()
			return ErrInterrupted
		case <-ticker.C:
			if done, err := pb.finished(); done {
				return err
			}
		}
	}
}

// finished checks the track under the playback lock so a concurrent
// Pause is never mistaken for completion
func (pb *playback) finished() (bool, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if err := pb.track.Err(); err != nil {
		return true, fmt.Errorf("%w: playback error: %w", ErrPlayback, err)
	}
	if pb.paused {
		return false, nil
	}
	return !pb.track.IsPlaying(), nil
}

// load reads and decodes uri into device-format PCM
func (p *Player) load(ctx context.Context, uri string, isLocalResource bool) ([]byte, error) {
	var (
		name string
		data []byte
		err  error
	)

	switch {
	case isLocalResource:
		name, err = p.resolver.Resolve(uri)
		if err != nil {
			return nil, err
		}
		data, err = os.ReadFile(name)
	case isRemote(uri):
		name = uri
		data, err = p.fetcher.Fetch(ctx, uri)
	default:
		name = strings.TrimPrefix(uri, "file://")
		data, err = os.ReadFile(name)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, uri)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlayback, err)
	}

	buf, err := decode.File(name, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlayback, err)
	}
	pcm, err := toDevice(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlayback, err)
	}
	return pcm, nil
}
