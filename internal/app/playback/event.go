package playback

// EventType represents a playback event type.
type EventType int

const (
	EventWordShown       EventType = iota // A word was revealed
	EventStateChanged                     // Playback state changed
	EventCompleted                        // The sequence was read to the end
	EventCleared                          // The displayed word should be cleared
	EventValidationError                  // A rate input was rejected
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventWordShown:
		return "word_shown"
	case EventStateChanged:
		return "state_changed"
	case EventCompleted:
		return "completed"
	case EventCleared:
		return "cleared"
	case EventValidationError:
		return "validation_error"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type    EventType
	Word    string // Revealed word (EventWordShown only)
	Index   int    // Index of the revealed word (EventWordShown only)
	State   State  // State after the event
	Message string // Validation message (EventValidationError only)

	generation uint64 // Timer generation at reveal time (EventWordShown only)
}

// Callbacks receives playback events. Every field is optional.
type Callbacks struct {
	OnWordShown       func(word string, index int)
	OnStateChanged    func(state State)
	OnCompleted       func()
	OnCleared         func()
	OnValidationError func(message string)
}

func (cb Callbacks) dispatch(e Event) {
	switch e.Type {
	case EventWordShown:
		if cb.OnWordShown != nil {
			cb.OnWordShown(e.Word, e.Index)
		}
	case EventStateChanged:
		if cb.OnStateChanged != nil {
			cb.OnStateChanged(e.State)
		}
	case EventCompleted:
		if cb.OnCompleted != nil {
			cb.OnCompleted()
		}
	case EventCleared:
		if cb.OnCleared != nil {
			cb.OnCleared()
		}
	case EventValidationError:
		if cb.OnValidationError != nil {
			cb.OnValidationError(e.Message)
		}
	}
}
