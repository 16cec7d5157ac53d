// Package playback provides the word playback state machine.
package playback

// State represents the playback state.
type State int

const (
	StateStopped State = iota // Nothing is being read (initial state)
	StateReading              // Words are being revealed
	StatePaused               // Reading is suspended at the cursor
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateReading:
		return "reading"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}
