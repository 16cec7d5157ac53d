package playback

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/flashread/internal/app/rate"
	"github.com/osa030/flashread/internal/domain/words"
)

// Errors
var (
	ErrNotStopped = errors.New("playback is not stopped")
	ErrClosed     = errors.New("controller is closed")
)

// Config holds controller configuration.
type Config struct {
	Scheduler Scheduler // Defaults to TimerScheduler
	Callbacks Callbacks
}

// Snapshot is a point-in-time view of the controller.
type Snapshot struct {
	State       State
	Cursor      int           // Index of the next word to reveal
	Total       int           // Number of words loaded
	WPM         int           // Current rate (0 if never set)
	Delay       time.Duration // Delay between two words
	CurrentWord string        // Last revealed word ("" while stopped)
}

// Controller reveals the words of a sequence one at a time.
//
// Callbacks are queued while the lock is held and delivered in order after it
// is released. The successor of a word is scheduled only once OnWordShown has
// returned, so at most one reveal is pending and slow callbacks slow the
// reading down instead of piling up. A word revealed but not yet handed to
// OnWordShown when Pause or Stop runs is withdrawn, and Pause rewinds the
// cursor to it so Resume shows it again.
type Controller struct {
	mu sync.Mutex

	// Word state
	words  words.Sequence
	cursor int
	state  State
	rate   rate.Rate

	// Timer
	scheduler   Scheduler
	timerCancel func() // Cancel function for the pending reveal
	generation  uint64 // Bumped on every cancel; stale timers compare against it

	// Callbacks
	callbacks   Callbacks
	pending     []Event
	dispatching bool

	closed bool
}

// NewController creates a new playback controller.
func NewController(config Config) *Controller {
	scheduler := config.Scheduler
	if scheduler == nil {
		scheduler = TimerScheduler{}
	}
	return &Controller{
		state:     StateStopped,
		rate:      rate.Default(),
		scheduler: scheduler,
		callbacks: config.Callbacks,
	}
}

// Load replaces the word sequence. It is only allowed while stopped.
func (c *Controller) Load(seq words.Sequence) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.state != StateStopped {
		return errors.Wrapf(ErrNotStopped, "cannot load while %s", c.state)
	}

	c.words = seq
	c.cursor = 0
	zlog.Debug().Msgf("playback: loaded sequence: words=%d", seq.Len())
	return nil
}

// Start begins reading from the first word at the rate given by rawWPM.
// Invalid input is reported through OnValidationError and returned; the state is left unchanged.
// Starting while reading or paused does nothing and returns ErrNotStopped.
func (c *Controller) Start(rawWPM string) error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	// Guards against double starts
	if c.state != StateStopped {
		state := c.state
		c.mu.Unlock()
		return errors.Wrapf(ErrNotStopped, "cannot start while %s", state)
	}

	r, err := rate.Parse(rawWPM)
	if err != nil {
		c.enqueueLocked(Event{
			Type:    EventValidationError,
			State:   c.state,
			Message: err.Error(),
		})
		c.mu.Unlock()
		c.flush()
		return err
	}

	c.rate = r
	c.cursor = 0
	c.setStateLocked(StateReading)
	zlog.Debug().Msgf("playback: start: words=%d rate=%s delay=%v", c.words.Len(), r, r.Delay())

	c.revealLocked()
	c.mu.Unlock()
	c.flush()
	return nil
}

// Pause suspends reading. It reports whether the state changed.
func (c *Controller) Pause() bool {
	c.mu.Lock()

	if c.state != StateReading {
		c.mu.Unlock()
		return false
	}

	c.cancelTimerLocked()
	c.withdrawUndeliveredLocked()
	c.setStateLocked(StatePaused)
	zlog.Debug().Msgf("playback: paused: cursor=%d", c.cursor)

	c.mu.Unlock()
	c.flush()
	return true
}

// Resume continues reading by revealing the word at the cursor immediately.
// It reports whether the state changed.
func (c *Controller) Resume() bool {
	c.mu.Lock()

	if c.state != StatePaused {
		c.mu.Unlock()
		return false
	}

	c.setStateLocked(StateReading)
	zlog.Debug().Msgf("playback: resumed: cursor=%d", c.cursor)
	c.revealLocked()

	c.mu.Unlock()
	c.flush()
	return true
}

// Stop ends reading and rewinds the cursor. It reports whether the state changed.
func (c *Controller) Stop() bool {
	c.mu.Lock()

	if c.state == StateStopped {
		c.mu.Unlock()
		return false
	}

	c.stopLocked()

	c.mu.Unlock()
	c.flush()
	return true
}

// SetRate changes the rate used for the following reveals.
// A pending reveal keeps the delay it was scheduled with.
func (c *Controller) SetRate(rawWPM string) error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	r, err := rate.Parse(rawWPM)
	if err != nil {
		c.enqueueLocked(Event{
			Type:    EventValidationError,
			State:   c.state,
			Message: err.Error(),
		})
		c.mu.Unlock()
		c.flush()
		return err
	}

	c.rate = r
	zlog.Debug().Msgf("playback: rate changed: rate=%s delay=%v", r, r.Delay())
	c.mu.Unlock()
	return nil
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cursor returns the index of the next word to reveal.
func (c *Controller) Cursor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// Len returns the number of loaded words.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.words.Len()
}

// Rate returns the current rate.
func (c *Controller) Rate() rate.Rate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// Snapshot returns the current controller state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		State:  c.state,
		Cursor: c.cursor,
		Total:  c.words.Len(),
		WPM:    c.rate.WPM(),
		Delay:  c.rate.Delay(),
	}
	if c.state != StateStopped && c.cursor > 0 {
		s.CurrentWord = c.words.At(c.cursor - 1)
	}
	return s
}

// Close stops reading and rejects further use.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state != StateStopped {
		c.stopLocked()
	}
	c.closed = true
	c.mu.Unlock()
	c.flush()
}

// revealLocked shows the word at the cursor and schedules the next one.
// Must be called with lock held.
func (c *Controller) revealLocked() {
	if c.cursor >= c.words.Len() {
		zlog.Debug().Msgf("playback: sequence completed: words=%d", c.words.Len())
		c.enqueueLocked(Event{
			Type:  EventCompleted,
			State: c.state,
		})
		c.stopLocked()
		return
	}

	c.enqueueLocked(Event{
		Type:       EventWordShown,
		Word:       c.words.At(c.cursor),
		Index:      c.cursor,
		State:      c.state,
		generation: c.generation,
	})
	c.cursor++
}

// stopLocked cancels the pending reveal and rewinds.
// Must be called with lock held.
func (c *Controller) stopLocked() {
	c.cancelTimerLocked()
	c.withdrawUndeliveredLocked()
	c.cursor = 0
	c.enqueueLocked(Event{
		Type:  EventCleared,
		State: c.state,
	})
	c.setStateLocked(StateStopped)
	zlog.Debug().Msg("playback: stopped")
}

// scheduleLocked schedules the next reveal after the current delay.
// Must be called with lock held.
func (c *Controller) scheduleLocked() {
	c.cancelTimerLocked()
	generation := c.generation
	c.timerCancel = c.scheduler.AfterFunc(c.rate.Delay(), func() {
		c.onTimer(generation)
	})
}

// cancelTimerLocked cancels the pending reveal, if any.
// Must be called with lock held.
func (c *Controller) cancelTimerLocked() {
	if c.timerCancel != nil {
		c.timerCancel()
		c.timerCancel = nil
	}
	c.generation++
}

// withdrawUndeliveredLocked removes queued word reveals and moves the cursor
// back to the first of them.
// Must be called with lock held.
func (c *Controller) withdrawUndeliveredLocked() {
	kept := c.pending[:0]
	rewind := -1
	for _, e := range c.pending {
		if e.Type != EventWordShown {
			kept = append(kept, e)
			continue
		}
		if rewind < 0 || e.Index < rewind {
			rewind = e.Index
		}
	}
	c.pending = kept

	if rewind >= 0 {
		c.cursor = rewind
	}
}

// onTimer is called when a scheduled reveal fires.
func (c *Controller) onTimer(generation uint64) {
	c.mu.Lock()

	// Cancelled after the timer had already fired
	if generation != c.generation || c.state != StateReading {
		c.mu.Unlock()
		return
	}

	c.timerCancel = nil
	c.revealLocked()
	c.mu.Unlock()
	c.flush()
}

// setStateLocked changes the state and queues a state change event.
// Must be called with lock held.
func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.enqueueLocked(Event{
		Type:  EventStateChanged,
		State: s,
	})
}

// enqueueLocked queues an event for delivery.
// Must be called with lock held.
func (c *Controller) enqueueLocked(e Event) {
	c.pending = append(c.pending, e)
}

// flush delivers queued events without holding the lock.
// Only one goroutine delivers at a time; events queued by reentrant calls
// are picked up by the loop already running.
func (c *Controller) flush() {
	c.mu.Lock()
	if c.dispatching {
		c.mu.Unlock()
		return
	}
	c.dispatching = true

	for len(c.pending) > 0 {
		e := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()

		c.callbacks.dispatch(e)

		c.mu.Lock()
		if e.Type == EventWordShown && e.generation == c.generation && c.state == StateReading {
			c.scheduleLocked()
		}
	}

	c.dispatching = false
	c.mu.Unlock()
}
