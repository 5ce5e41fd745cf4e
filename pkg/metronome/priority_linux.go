//go:build linux

// ABOUTME: Linux thread priority for the scheduler loop
// ABOUTME: Lowers the niceness of the locked OS thread
package metronome

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// schedulerNice is the niceness requested for the scheduler thread
const schedulerNice = -10

// raisePriority must be called from a goroutine locked to its OS thread.
// Without CAP_SYS_NICE this fails and the loop keeps normal priority.
func raisePriority() error {
	if err := unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), schedulerNice); err != nil {
		return fmt.Errorf("setpriority %d: %w", schedulerNice, err)
	}
	return nil
}
