// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the channels it drives the metronome through
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Control holds channels for requests from the TUI to the main loop
type Control struct {
	Toggle chan struct{}
	BPM    chan float64
	Volume chan float64
	Quit   chan struct{}
}

// NewControl creates a new control handler
func NewControl() *Control {
	return &Control{
		Toggle: make(chan struct{}, 1),
		BPM:    make(chan float64, 10),
		Volume: make(chan float64, 10),
		Quit:   make(chan struct{}, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(ctrl *Control, bpm, volume float64) Model {
	return Model{
		bpm:    bpm,
		volume: volume,
		ctrl:   ctrl,
	}
}

// Run creates the TUI program
func Run(ctrl *Control, bpm, volume float64) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(ctrl, bpm, volume), tea.WithAltScreen())
	return p, nil
}
