// ABOUTME: Tests for the metronome CLI commands
// ABOUTME: Runs commands in-process against a temporary config dir
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-metronome/internal/media"
	"github.com/Resonate-Protocol/resonate-metronome/internal/ui"
	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio/decode"
	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-metronome/pkg/metronome"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI with args against a clean flag state and no user config
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	resetFlags(rootCmd)
	cfgPath = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "Resonate Metronome")
}

func TestRenderWAV(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "render", "--out", dir, "--volume", "0.8", "--seed", "9")
	require.NoError(t, err)
	require.Contains(t, out, "tick.wav")
	require.Equal(t, 0.8, cfg.Volume)

	for _, name := range []string{"tick.wav", "tock.wav"} {
		f, err := os.Open(filepath.Join(dir, name))
		require.NoError(t, err)
		buf, err := decode.DecodeWAV(f)
		f.Close()
		require.NoError(t, err)

		require.Equal(t, metronome.SampleRate, buf.Format.SampleRate)
		require.Equal(t, 1, buf.Format.Channels)
		require.Len(t, buf.Samples, metronome.ClickSamples)
	}
}

func TestRenderRawIsDeterministicWithSeed(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()

	_, err := execute(t, "render", "-o", first, "-f", "raw", "--seed", "5")
	require.NoError(t, err)
	_, err = execute(t, "render", "-o", second, "-f", "raw", "--seed", "5")
	require.NoError(t, err)

	a, err := os.ReadFile(filepath.Join(first, "tock.pcm"))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(second, "tock.pcm"))
	require.NoError(t, err)

	require.Len(t, a, metronome.ClickBytes)
	require.Equal(t, a, b)
}

func TestRenderRejectsBadInput(t *testing.T) {
	_, err := execute(t, "render", "-o", t.TempDir(), "--volume", "1.5")
	require.ErrorIs(t, err, metronome.ErrInvalidArgument)

	_, err = execute(t, "render", "-o", t.TempDir(), "-f", "mp3")
	require.ErrorContains(t, err, "unknown format")
}

func TestConfigFileFeedsCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("volume: 0.3\nbpm: 150\n"), 0644))

	_, err := execute(t, "--config", path, "render", "-o", t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 0.3, cfg.Volume)
	require.Equal(t, 150.0, cfg.BPM)
}

func TestBindFlagsSkipsUnknown(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Float64("bpm", 60, "")
	require.NoError(t, flags.Parse([]string{"--bpm", "99"}))

	v := viper.New()
	require.NoError(t, bindFlags(v, flags))
	require.Equal(t, 99.0, v.GetFloat64("bpm"))
	require.False(t, v.IsSet("volume"))
}

func memoryEngine(t *testing.T) *metronome.Engine {
	t.Helper()
	e := metronome.NewEngine(metronome.EngineConfig{
		NewSink: func() (output.Sink, error) { return output.NewMemory(), nil },
	})
	t.Cleanup(func() { _ = e.Stop() })
	return e
}

type msgLog struct {
	msgs chan tea.Msg
}

func (l *msgLog) send(msg tea.Msg) { l.msgs <- msg }

func (l *msgLog) next(t *testing.T) ui.StatusMsg {
	t.Helper()
	select {
	case msg := <-l.msgs:
		return msg.(ui.StatusMsg)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for TUI update")
		return ui.StatusMsg{}
	}
}

func TestHandleControl(t *testing.T) {
	engine := memoryEngine(t)
	ctrl := ui.NewControl()
	updates := &msgLog{msgs: make(chan tea.Msg, 10)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleControl(ctx, engine, ctrl, updates.send)

	ctrl.Toggle <- struct{}{}
	msg := updates.next(t)
	require.True(t, *msg.Running)
	require.Empty(t, msg.Err)
	require.True(t, engine.Running())

	ctrl.BPM <- 140
	updates.next(t)
	require.Equal(t, 140.0, engine.BPM())

	ctrl.Volume <- 2
	msg = updates.next(t)
	require.Contains(t, msg.Err, "volume")

	ctrl.Toggle <- struct{}{}
	msg = updates.next(t)
	require.False(t, *msg.Running)
	require.False(t, engine.Running())
}

func TestApplyTempo(t *testing.T) {
	engine := memoryEngine(t)
	updates := &msgLog{msgs: make(chan tea.Msg, 1)}

	applyTempo(engine, 111, 0.2, updates.send)
	msg := updates.next(t)
	require.Equal(t, 111.0, *msg.BPM)
	require.Equal(t, 0.2, *msg.Volume)

	// Out-of-range values leave the engine unchanged
	applyTempo(engine, 500, 0.2, updates.send)
	msg = updates.next(t)
	require.Equal(t, 111.0, *msg.BPM)
}

func TestStatusMsg(t *testing.T) {
	player := media.NewPlayer(media.Config{AssetsDir: t.TempDir()})
	st := metronome.Stats{Running: true, BeatsEmitted: 12, Recoveries: 1, Underruns: 4, WriteFaults: 2}

	msg := statusMsg(st, player, nil)
	require.True(t, *msg.Running)
	require.Equal(t, uint64(12), msg.Beats)
	require.Equal(t, uint64(1), msg.Recoveries)
	require.Equal(t, int64(4), msg.Underruns)
	require.Equal(t, uint64(2), msg.Faults)
	require.Empty(t, *msg.Media)
	require.Nil(t, msg.Clients)
}

func TestBridgeName(t *testing.T) {
	cfg.Bridge.Name = "studio"
	require.Equal(t, "studio", bridgeName())

	cfg.Bridge.Name = ""
	require.Contains(t, bridgeName(), "-metronome")
}
