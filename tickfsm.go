// Package tickfsm provides a finite state machine for frame-driven hosts such
// as game loops. States are registered by name through factories, transitions
// are an explicit table of permitted moves with optional guards, and every
// move runs a checked exit/enter protocol that hands a payload from the
// source to the destination. The active state receives Tick and Render calls
// from the host each frame.
package tickfsm

import (
	"time"
)

// FrameDuration returns the fixed step for fps frames per second. Non-positive
// values yield zero.
func FrameDuration(fps int) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Second / time.Duration(fps)
}
