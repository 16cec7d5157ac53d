// Package state provides session state management.
package state

import "time"

// Phase represents whether the session has something to read.
type Phase int

const (
	PhaseEmpty  Phase = iota // No document loaded yet
	PhaseLoaded              // A document is loaded
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// RunStats summarises the reading runs of the loaded document.
type RunStats struct {
	Started         int
	Completed       int
	LastCompletedAt *time.Time
}
