// ABOUTME: Playable track abstraction over the shared oto context
// ABOUTME: One oto player per track, mixed by oto alongside the metronome
package media

import (
	"bytes"

	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio/output"
	"github.com/ebitengine/oto/v3"
)

// Track is one prepared sound
type Track interface {
	Play()
	Pause()
	// IsPlaying is false once paused or once all audio has been played
	IsPlaying() bool
	Err() error
	Close() error
}

// TrackFactory prepares interleaved PCM16 in output.DeviceFormat for playback
type TrackFactory func(pcm []byte) (Track, error)

type otoTrack struct {
	player *oto.Player
}

// NewOtoTrack plays pcm through the process-wide oto context
func NewOtoTrack(pcm []byte) (Track, error) {
	ctx, err := output.SharedContext()
	if err != nil {
		return nil, err
	}
	return &otoTrack{player: ctx.NewPlayer(bytes.NewReader(pcm))}, nil
}

func (t *otoTrack) Play()           { t.player.Play() }
func (t *otoTrack) Pause()          { t.player.Pause() }
func (t *otoTrack) IsPlaying() bool { return t.player.IsPlaying() }
func (t *otoTrack) Err() error      { return t.player.Err() }
func (t *otoTrack) Close() error    { return t.player.Close() }
