// ABOUTME: Bubbletea model for the metronome TUI
// ABOUTME: Defines display state, key handling and rendering
package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/Resonate-Protocol/resonate-metronome/pkg/metronome"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	bpmStep       = 1
	bpmStepLarge  = 10
	volumeStep    = 0.05
	volumeBarSize = 20
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	tickStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	tockStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// Model represents the TUI state
type Model struct {
	// Engine
	running bool
	bpm     float64
	volume  float64

	// Last beat
	beatIndex uint64
	role      metronome.Role
	hasBeat   bool

	// Stats
	beats      uint64
	recoveries uint64
	underruns  int64
	faults     uint64

	// Collaborators
	media   string
	clients int

	lastErr  string
	quitting bool

	ctrl *Control

	width  int
	height int
}

// StatusMsg updates TUI state. Nil fields are left unchanged.
type StatusMsg struct {
	Running    *bool
	BPM        *float64
	Volume     *float64
	Beats      uint64
	Recoveries uint64
	Underruns  int64
	Faults     uint64
	Media      *string
	Clients    *int
	Err        string
}

// BeatMsg reports an emitted click
type BeatMsg metronome.Beat

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	case BeatMsg:
		m.beatIndex = msg.Index
		m.role = msg.Role
		m.hasBeat = true
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Stopping metronome...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Resonate Metronome"))
	b.WriteString("\n\n")

	state := "Stopped"
	if m.running {
		state = "Running"
	}
	field(&b, "Status: ", state)
	field(&b, "Tempo:  ", fmt.Sprintf("%.0f BPM", m.bpm))
	field(&b, "Volume: ", fmt.Sprintf("[%s] %d%%", renderBar(percent(m.volume), 100, volumeBarSize), percent(m.volume)))
	b.WriteString("\n")

	b.WriteString(m.renderBeat())
	b.WriteString("\n\n")

	field(&b, "Beats:  ", fmt.Sprintf("%d  Recoveries: %d  Underruns: %d  Faults: %d",
		m.beats, m.recoveries, m.underruns, m.faults))
	if m.media != "" {
		field(&b, "Media:  ", truncate(m.media, 48))
	}
	if m.clients > 0 {
		field(&b, "Bridge: ", fmt.Sprintf("%d client(s)", m.clients))
	}
	if m.lastErr != "" {
		b.WriteString(errorStyle.Render("Error: " + m.lastErr))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("space:Start/Stop  ↑/↓:BPM ±1  ←/→:BPM ±10  +/-:Volume  q:Quit"))

	return b.String()
}

func field(b *strings.Builder, name, value string) {
	b.WriteString(headerStyle.Render(name))
	b.WriteString(valueStyle.Render(value))
	b.WriteString("\n")
}

// renderBeat shows which click sounded last
func (m Model) renderBeat() string {
	if !m.running || !m.hasBeat {
		return valueStyle.Render("  ○   ○")
	}
	if m.role == metronome.Tick {
		return tickStyle.Render("  ●") + valueStyle.Render("   ○") + valueStyle.Render(fmt.Sprintf("   beat %d", m.beatIndex+1))
	}
	return valueStyle.Render("  ○") + tockStyle.Render("   ●") + valueStyle.Render(fmt.Sprintf("   beat %d", m.beatIndex+1))
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		if m.ctrl != nil {
			select {
			case m.ctrl.Quit <- struct{}{}:
			default:
			}
		}
		return m, tea.Quit
	case " ", "space":
		if m.ctrl != nil {
			select {
			case m.ctrl.Toggle <- struct{}{}:
			default:
			}
		}
	case "up":
		m.setBPM(m.bpm + bpmStep)
	case "down":
		m.setBPM(m.bpm - bpmStep)
	case "right":
		m.setBPM(m.bpm + bpmStepLarge)
	case "left":
		m.setBPM(m.bpm - bpmStepLarge)
	case "+", "=":
		m.setVolume(m.volume + volumeStep)
	case "-", "_":
		m.setVolume(m.volume - volumeStep)
	}

	return m, nil
}

func (m *Model) setBPM(bpm float64) {
	bpm = math.Max(metronome.MinBPM, math.Min(metronome.MaxBPM, math.Round(bpm)))
	if bpm == m.bpm {
		return
	}
	m.bpm = bpm
	if m.ctrl != nil {
		select {
		case m.ctrl.BPM <- bpm:
		default:
		}
	}
}

func (m *Model) setVolume(volume float64) {
	volume = math.Max(metronome.MinVolume, math.Min(metronome.MaxVolume, math.Round(volume*100)/100))
	if volume == m.volume {
		return
	}
	m.volume = volume
	if m.ctrl != nil {
		select {
		case m.ctrl.Volume <- volume:
		default:
		}
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Running != nil {
		m.running = *msg.Running
		if !m.running {
			m.hasBeat = false
		}
	}
	if msg.BPM != nil {
		m.bpm = *msg.BPM
	}
	if msg.Volume != nil {
		m.volume = *msg.Volume
	}
	if msg.Media != nil {
		m.media = *msg.Media
	}
	if msg.Clients != nil {
		m.clients = *msg.Clients
	}
	m.beats = msg.Beats
	m.recoveries = msg.Recoveries
	m.underruns = msg.Underruns
	m.faults = msg.Faults
	m.lastErr = msg.Err
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func percent(volume float64) int {
	return int(math.Round(volume * 100))
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
