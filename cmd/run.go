// ABOUTME: Default command that runs the metronome
// ABOUTME: Wires the engine, media player, bridge and TUI together
package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/resonate-metronome/internal/bridge"
	"github.com/Resonate-Protocol/resonate-metronome/internal/config"
	"github.com/Resonate-Protocol/resonate-metronome/internal/media"
	"github.com/Resonate-Protocol/resonate-metronome/internal/ui"
	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-metronome/pkg/metronome"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

const (
	statusInterval = 250 * time.Millisecond
	beatQueue      = 16
)

// setupLogging sends the log to the log file, and also to stdout without the TUI
func setupLogging(useTUI bool) (io.Closer, error) {
	f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("error opening log file: %w", err)
	}

	if useTUI {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}
	return f, nil
}

func runMetronome(cmd *cobra.Command, args []string) error {
	useTUI := !cfg.NoTUI

	logCloser, err := setupLogging(useTUI)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// TUI setup
	var tuiProg *tea.Program
	var ctrl *ui.Control
	if useTUI {
		ctrl = ui.NewControl()
		tuiProg, err = ui.Run(ctrl, cfg.BPM, cfg.Volume)
		if err != nil {
			return fmt.Errorf("failed to start TUI: %w", err)
		}
		go tuiProg.Run()
	}

	updateTUI := func(msg tea.Msg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	// Beats leave the scheduler thread through a queue that never blocks it
	beats := make(chan metronome.Beat, beatQueue)
	engine := metronome.NewEngine(metronome.EngineConfig{
		NewSink: func() (output.Sink, error) { return output.NewSink(cfg.Backend) },
		OnBeat: func(b metronome.Beat) {
			select {
			case beats <- b:
			default:
			}
		},
		Debug: cfg.Debug,
	})
	defer func() {
		if err := engine.Stop(); err != nil {
			log.Printf("Error stopping metronome: %v", err)
		}
	}()

	player := media.NewPlayer(media.Config{
		AssetsDir: cfg.Media.AssetsDir,
		CacheTTL:  cfg.Media.CacheTTL,
	})
	defer player.Stop()

	var wg sync.WaitGroup
	var bridgeSrv *bridge.Server
	if cfg.Bridge.Enabled {
		bridgeSrv = bridge.New(bridge.Config{
			Port:       cfg.Bridge.Port,
			Name:       bridgeName(),
			EnableMDNS: cfg.Bridge.MDNS,
			Debug:      cfg.Debug,
		}, engine, player)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bridgeSrv.Run(ctx); err != nil {
				log.Printf("Bridge stopped: %v", err)
			}
		}()
	}

	go forwardBeats(ctx, beats, updateTUI, bridgeSrv)

	if !useTUI {
		log.Printf("Starting metronome: %.0f BPM, volume %.2f, backend %s", cfg.BPM, cfg.Volume, cfg.Backend)
		log.Printf("TUI disabled - streaming logs")
	}

	if err := engine.Start(cfg.BPM, cfg.Volume); err != nil {
		if !useTUI {
			return fmt.Errorf("starting metronome: %w", err)
		}
		log.Printf("Failed to start metronome: %v", err)
		updateTUI(ui.StatusMsg{Err: err.Error()})
	}

	config.Watch(v, func(c config.Config) {
		applyTempo(engine, c.BPM, c.Volume, updateTUI)
	})

	if ctrl != nil {
		go handleControl(ctx, engine, ctrl, updateTUI)
	}
	if tuiProg != nil {
		go statusLoop(ctx, engine, player, bridgeSrv, updateTUI)
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var quit <-chan struct{}
	if ctrl != nil {
		quit = ctrl.Quit
	}

	select {
	case <-quit:
		log.Printf("Received quit signal from TUI")
	case <-sigChan:
		log.Printf("Shutdown signal received")
	}

	cancel()
	if tuiProg != nil {
		tuiProg.Quit()
	}
	wg.Wait()

	log.Printf("Metronome stopped")
	return nil
}

// bridgeName returns the configured name or hostname-metronome
func bridgeName() string {
	if cfg.Bridge.Name != "" {
		return cfg.Bridge.Name
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-metronome", hostname)
}

// forwardBeats fans beats out to the TUI and bridge clients
func forwardBeats(ctx context.Context, beats <-chan metronome.Beat, updateTUI func(tea.Msg), srv *bridge.Server) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-beats:
			updateTUI(ui.BeatMsg(b))
			if srv != nil {
				srv.BroadcastBeat(b)
			}
		}
	}
}

// handleControl processes requests from the TUI
func handleControl(ctx context.Context, engine *metronome.Engine, ctrl *ui.Control, updateTUI func(tea.Msg)) {
	report := func(err error) {
		msg := ui.StatusMsg{}
		if err != nil {
			log.Printf("Control error: %v", err)
			msg.Err = err.Error()
		}
		running := engine.Running()
		msg.Running = &running
		updateTUI(msg)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ctrl.Toggle:
			if engine.Running() {
				log.Printf("Stopping metronome")
				report(engine.Stop())
			} else {
				log.Printf("Starting metronome: %.0f BPM", engine.BPM())
				report(engine.Start(engine.BPM(), engine.Volume()))
			}
		case bpm := <-ctrl.BPM:
			log.Printf("Tempo change: %.0f BPM", bpm)
			report(engine.SetBPM(bpm))
		case volume := <-ctrl.Volume:
			log.Printf("Volume change: %.0f%%", volume*100)
			report(engine.SetVolume(volume))
		}
	}
}

// applyTempo pushes reloaded settings into the engine and the TUI
func applyTempo(engine *metronome.Engine, bpm, volume float64, updateTUI func(tea.Msg)) {
	if err := engine.SetBPM(bpm); err != nil {
		log.Printf("Ignoring reloaded bpm: %v", err)
	}
	if err := engine.SetVolume(volume); err != nil {
		log.Printf("Ignoring reloaded volume: %v", err)
	}

	b, vol := engine.BPM(), engine.Volume()
	updateTUI(ui.StatusMsg{BPM: &b, Volume: &vol})
}

// statusLoop periodically updates the TUI with engine statistics
func statusLoop(ctx context.Context, engine *metronome.Engine, player *media.Player, srv *bridge.Server, updateTUI func(tea.Msg)) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateTUI(statusMsg(engine.Stats(), player, srv))
		}
	}
}

func statusMsg(st metronome.Stats, player *media.Player, srv *bridge.Server) ui.StatusMsg {
	uri, _ := player.Playing()
	msg := ui.StatusMsg{
		Running:    &st.Running,
		Beats:      st.BeatsEmitted,
		Recoveries: st.Recoveries,
		Underruns:  st.Underruns,
		Faults:     st.WriteFaults,
		Media:      &uri,
	}
	if srv != nil {
		clients := srv.Clients()
		msg.Clients = &clients
	}
	return msg
}
