//go:build !linux

// ABOUTME: Thread priority fallback for non-Linux platforms
// ABOUTME: The scheduler runs at normal priority
package metronome

func raisePriority() error {
	return nil
}
