package playback

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/flashread/internal/app/playback/playbacktest"
	"github.com/osa030/flashread/internal/app/rate"
	"github.com/osa030/flashread/internal/domain/words"
)

type shownWord struct {
	Word string
	At   time.Duration
}

// recorder collects callbacks with their virtual time.
type recorder struct {
	mu         sync.Mutex
	clock      *playbacktest.Scheduler
	shown      []shownWord
	states     []State
	completed  []time.Duration
	cleared    int
	validation []string
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnWordShown: func(word string, index int) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.shown = append(r.shown, shownWord{Word: word, At: r.clock.Now()})
		},
		OnStateChanged: func(state State) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, state)
		},
		OnCompleted: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completed = append(r.completed, r.clock.Now())
		},
		OnCleared: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.cleared++
		},
		OnValidationError: func(message string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.validation = append(r.validation, message)
		},
	}
}

func (r *recorder) words() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]string, len(r.shown))
	for i, s := range r.shown {
		result[i] = s.Word
	}
	return result
}

func newTestController(t *testing.T, ws ...string) (*Controller, *playbacktest.Scheduler, *recorder) {
	t.Helper()
	sched := playbacktest.NewScheduler()
	rec := &recorder{clock: sched}
	c := NewController(Config{
		Scheduler: sched,
		Callbacks: rec.callbacks(),
	})
	require.NoError(t, c.Load(words.NewSequence(ws)))
	return c, sched, rec
}

func TestController_FullRunTiming(t *testing.T) {
	c, sched, rec := newTestController(t, "a", "b", "c")

	require.NoError(t, c.Start("60"))
	assert.Equal(t, StateReading, c.State())
	assert.Equal(t, []shownWord{{"a", 0}}, rec.shown)

	sched.Advance(999 * time.Millisecond)
	assert.Equal(t, []string{"a"}, rec.words())

	sched.Advance(1 * time.Millisecond)
	sched.Advance(1000 * time.Millisecond)
	assert.Equal(t, []shownWord{
		{"a", 0},
		{"b", 1000 * time.Millisecond},
		{"c", 2000 * time.Millisecond},
	}, rec.shown)
	assert.Empty(t, rec.completed)

	sched.Advance(1000 * time.Millisecond)
	assert.Equal(t, []time.Duration{3000 * time.Millisecond}, rec.completed)
	assert.Equal(t, StateStopped, c.State())
	assert.Equal(t, 0, c.Cursor())
	assert.Equal(t, 0, sched.Pending())

	// Nothing else fires later
	sched.Advance(10 * time.Second)
	assert.Len(t, rec.shown, 3)
	assert.Len(t, rec.completed, 1)
	assert.Equal(t, []State{StateReading, StateStopped}, rec.states)
}

func TestController_WordsInOrderThenOneCompletion(t *testing.T) {
	ws := []string{"one", "two", "three", "four", "five", "six", "seven"}
	c, sched, rec := newTestController(t, ws...)

	require.NoError(t, c.Start("1200"))
	sched.Advance(time.Minute)

	assert.Equal(t, ws, rec.words())
	assert.Len(t, rec.completed, 1)
	assert.Equal(t, StateStopped, c.State())
}

func TestController_PauseAndResume(t *testing.T) {
	c, sched, rec := newTestController(t, "a", "b", "c")

	require.NoError(t, c.Start("60"))
	sched.Advance(500 * time.Millisecond)

	assert.True(t, c.Pause())
	assert.Equal(t, StatePaused, c.State())
	assert.Equal(t, 1, c.Cursor())
	assert.Equal(t, 0, sched.Pending())

	sched.Advance(5 * time.Second)
	assert.Equal(t, []string{"a"}, rec.words())

	assert.True(t, c.Resume())
	assert.Equal(t, shownWord{"b", 5500 * time.Millisecond}, rec.shown[1])

	sched.Advance(999 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, rec.words())

	sched.Advance(1 * time.Millisecond)
	assert.Equal(t, shownWord{"c", 6500 * time.Millisecond}, rec.shown[2])

	sched.Advance(1 * time.Second)
	assert.Len(t, rec.completed, 1)
	assert.Equal(t, []State{StateReading, StatePaused, StateReading, StateStopped}, rec.states)
}

func TestController_PauseResumeNeverSkipsOrRepeats(t *testing.T) {
	ws := []string{"w0", "w1", "w2", "w3", "w4", "w5"}
	c, sched, rec := newTestController(t, ws...)

	require.NoError(t, c.Start("600")) // 100ms
	for i := 0; i < 10 && c.State() != StateStopped; i++ {
		sched.Advance(130 * time.Millisecond)
		if c.Pause() {
			cursor := c.Cursor()
			sched.Advance(time.Second)
			c.Resume()
			got := rec.words()
			if cursor < len(ws) {
				assert.Equal(t, ws[cursor], got[len(got)-1])
			}
		}
	}
	sched.Advance(time.Minute)

	assert.Equal(t, ws, rec.words())
	assert.Len(t, rec.completed, 1)
}

func TestController_StopResetsCursor(t *testing.T) {
	c, sched, rec := newTestController(t, "a", "b", "c", "d")

	require.NoError(t, c.Start("60"))
	sched.Advance(2 * time.Second)
	require.Equal(t, 3, c.Cursor())

	assert.True(t, c.Stop())
	assert.Equal(t, StateStopped, c.State())
	assert.Equal(t, 0, c.Cursor())
	assert.Equal(t, 0, sched.Pending())
	assert.Equal(t, 1, rec.cleared)
	assert.Empty(t, rec.completed)

	sched.Advance(time.Minute)
	assert.Equal(t, []string{"a", "b", "c"}, rec.words())

	// Starting again begins from the first word
	require.NoError(t, c.Start("60"))
	assert.Equal(t, "a", rec.words()[3])
}

func TestController_StopWhilePaused(t *testing.T) {
	c, sched, _ := newTestController(t, "a", "b")

	require.NoError(t, c.Start("60"))
	require.True(t, c.Pause())

	assert.True(t, c.Stop())
	assert.Equal(t, StateStopped, c.State())
	assert.Equal(t, 0, c.Cursor())
	assert.Equal(t, 0, sched.Pending())
}

func TestController_StartImmediatelyStop(t *testing.T) {
	c, sched, rec := newTestController(t, "a", "b")

	require.NoError(t, c.Start("300"))
	c.Stop()

	assert.Equal(t, StateStopped, c.State())
	assert.Equal(t, 0, c.Cursor())
	sched.Advance(time.Minute)
	assert.Equal(t, []string{"a"}, rec.words())
}

func TestController_EmptySequence(t *testing.T) {
	c, sched, rec := newTestController(t)

	require.NoError(t, c.Start("60"))

	assert.Equal(t, StateStopped, c.State())
	assert.Empty(t, rec.shown)
	assert.Len(t, rec.completed, 1)
	assert.Equal(t, 0, sched.Pending())
	assert.Equal(t, []State{StateReading, StateStopped}, rec.states)
}

func TestController_InvalidRate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "zero", raw: "0"},
		{name: "negative", raw: "-60"},
		{name: "decimal", raw: "60.5"},
		{name: "letters", raw: "fast"},
		{name: "empty", raw: ""},
		{name: "too fast", raw: "1201"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, sched, rec := newTestController(t, "a", "b")

			err := c.Start(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, rate.ErrInvalidRateInput))

			assert.Equal(t, StateStopped, c.State())
			assert.Equal(t, 0, c.Cursor())
			assert.Equal(t, 0, sched.Pending())
			assert.Empty(t, rec.shown)
			assert.Empty(t, rec.states)
			assert.Len(t, rec.validation, 1)
		})
	}
}

func TestController_NoOpTransitions(t *testing.T) {
	t.Run("pause resume stop while stopped", func(t *testing.T) {
		c, sched, rec := newTestController(t, "a", "b")

		assert.False(t, c.Pause())
		assert.False(t, c.Resume())
		assert.False(t, c.Stop())

		assert.Equal(t, StateStopped, c.State())
		assert.Equal(t, 0, c.Cursor())
		assert.Equal(t, 0, sched.Pending())
		assert.Empty(t, rec.states)
		assert.Zero(t, rec.cleared)
	})

	t.Run("resume while reading", func(t *testing.T) {
		c, sched, rec := newTestController(t, "a", "b")
		require.NoError(t, c.Start("60"))

		assert.False(t, c.Resume())

		assert.Equal(t, StateReading, c.State())
		assert.Equal(t, 1, c.Cursor())
		assert.Equal(t, 1, sched.Pending())
		assert.Equal(t, []string{"a"}, rec.words())
	})

	t.Run("double start", func(t *testing.T) {
		c, sched, rec := newTestController(t, "a", "b")
		require.NoError(t, c.Start("60"))

		err := c.Start("60")
		assert.True(t, errors.Is(err, ErrNotStopped))

		assert.Equal(t, 1, c.Cursor())
		assert.Equal(t, 1, sched.Pending())
		assert.Equal(t, []string{"a"}, rec.words())
	})

	t.Run("pause while paused", func(t *testing.T) {
		c, _, _ := newTestController(t, "a", "b")
		require.NoError(t, c.Start("60"))
		require.True(t, c.Pause())

		assert.False(t, c.Pause())
		assert.Equal(t, StatePaused, c.State())
	})

	t.Run("start while paused", func(t *testing.T) {
		c, sched, _ := newTestController(t, "a", "b")
		require.NoError(t, c.Start("60"))
		require.True(t, c.Pause())

		err := c.Start("60")
		assert.True(t, errors.Is(err, ErrNotStopped))
		assert.Equal(t, StatePaused, c.State())
		assert.Equal(t, 1, c.Cursor())
		assert.Equal(t, 0, sched.Pending())
	})
}

func TestController_StaleTimerIsDiscarded(t *testing.T) {
	c, sched, rec := newTestController(t, "a", "b", "c")

	require.NoError(t, c.Start("60"))
	require.True(t, c.Pause())

	// The cancelled reveal fires anyway
	sched.FireCancelled()
	assert.Equal(t, []string{"a"}, rec.words())
	assert.Equal(t, 1, c.Cursor())

	require.True(t, c.Resume())
	require.True(t, c.Stop())
	sched.FireCancelled()
	assert.Equal(t, []string{"a", "b"}, rec.words())
	assert.Equal(t, 0, c.Cursor())
}

func TestController_LoadOnlyWhileStopped(t *testing.T) {
	c, sched, rec := newTestController(t, "a", "b")

	require.NoError(t, c.Start("60"))
	err := c.Load(words.NewSequence([]string{"x"}))
	assert.True(t, errors.Is(err, ErrNotStopped))
	assert.Equal(t, 2, c.Len())

	require.True(t, c.Pause())
	err = c.Load(words.NewSequence([]string{"x"}))
	assert.True(t, errors.Is(err, ErrNotStopped))

	require.True(t, c.Stop())
	require.NoError(t, c.Load(words.NewSequence([]string{"x", "y"})))
	require.NoError(t, c.Start("60"))
	sched.Advance(time.Minute)

	assert.Equal(t, []string{"a", "x", "y"}, rec.words())
}

func TestController_SetRate(t *testing.T) {
	c, sched, rec := newTestController(t, "a", "b", "c")

	require.NoError(t, c.Start("60"))

	// The pending reveal keeps its delay
	require.NoError(t, c.SetRate("120"))
	assert.Equal(t, 120, c.Rate().WPM())

	sched.Advance(1000 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, rec.words())

	sched.Advance(500 * time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, rec.words())
	assert.Equal(t, 1500*time.Millisecond, rec.shown[2].At)

	err := c.SetRate("0")
	assert.True(t, errors.Is(err, rate.ErrInvalidRateInput))
	assert.Equal(t, 120, c.Rate().WPM())
	assert.Len(t, rec.validation, 1)
}

func TestController_Snapshot(t *testing.T) {
	c, sched, _ := newTestController(t, "a", "b", "c")

	s := c.Snapshot()
	assert.Equal(t, StateStopped, s.State)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, rate.DefaultWPM, s.WPM)
	assert.Empty(t, s.CurrentWord)

	require.NoError(t, c.Start("60"))
	sched.Advance(time.Second)

	s = c.Snapshot()
	assert.Equal(t, StateReading, s.State)
	assert.Equal(t, 2, s.Cursor)
	assert.Equal(t, 60, s.WPM)
	assert.Equal(t, time.Second, s.Delay)
	assert.Equal(t, "b", s.CurrentWord)
}

func TestController_CallbacksMayReenter(t *testing.T) {
	sched := playbacktest.NewScheduler()
	var c *Controller
	var shown []string
	c = NewController(Config{
		Scheduler: sched,
		Callbacks: Callbacks{
			OnWordShown: func(word string, index int) {
				shown = append(shown, word)
				if word == "b" {
					c.Pause()
				}
			},
		},
	})
	require.NoError(t, c.Load(words.NewSequence([]string{"a", "b", "c"})))

	require.NoError(t, c.Start("60"))
	sched.Advance(time.Minute)

	assert.Equal(t, []string{"a", "b"}, shown)
	assert.Equal(t, StatePaused, c.State())
	assert.Equal(t, 0, sched.Pending())
}

func TestController_PauseWithdrawsUndeliveredWord(t *testing.T) {
	sched := playbacktest.NewScheduler()
	var c *Controller
	var shown []string
	c = NewController(Config{
		Scheduler: sched,
		Callbacks: Callbacks{
			OnWordShown: func(word string, index int) {
				shown = append(shown, word)
				if word == "a" {
					// "b" is revealed but still queued behind this callback
					c.Pause()
					c.Resume()
					c.Pause()
				}
			},
		},
	})
	require.NoError(t, c.Load(words.NewSequence([]string{"a", "b", "c"})))

	require.NoError(t, c.Start("60"))
	assert.Equal(t, []string{"a"}, shown)
	assert.Equal(t, StatePaused, c.State())
	assert.Equal(t, 1, c.Cursor())
	assert.Equal(t, 0, sched.Pending())

	require.True(t, c.Resume())
	sched.Advance(time.Minute)
	assert.Equal(t, []string{"a", "b", "c"}, shown)
}

func TestController_SlowWordCallbackPacesReading(t *testing.T) {
	seq := make([]string, 200)
	for i := range seq {
		seq[i] = fmt.Sprintf("w%d", i)
	}

	var (
		mu         sync.Mutex
		shown      []string
		paused     atomic.Bool
		lateStarts atomic.Int32
	)
	c := NewController(Config{
		Callbacks: Callbacks{
			OnWordShown: func(word string, index int) {
				if paused.Load() {
					lateStarts.Add(1)
				}
				mu.Lock()
				shown = append(shown, word)
				mu.Unlock()
				// Slower than the 50ms delay
				time.Sleep(100 * time.Millisecond)
			},
		},
	})
	t.Cleanup(c.Close)
	require.NoError(t, c.Load(words.NewSequence(seq)))

	require.NoError(t, c.Start("1200"))
	time.Sleep(500 * time.Millisecond)
	require.True(t, c.Pause())
	paused.Store(true)

	time.Sleep(400 * time.Millisecond)
	assert.Zero(t, lateStarts.Load())

	mu.Lock()
	got := append([]string(nil), shown...)
	mu.Unlock()

	// One word per callback plus delay, never a backlog
	assert.LessOrEqual(t, len(got), 5)
	assert.Equal(t, seq[:len(got)], got)
	assert.Equal(t, len(got), c.Cursor())
}

func TestController_Close(t *testing.T) {
	c, sched, _ := newTestController(t, "a", "b")

	require.NoError(t, c.Start("60"))
	c.Close()

	assert.Equal(t, StateStopped, c.State())
	assert.Equal(t, 0, sched.Pending())
	assert.True(t, errors.Is(c.Start("60"), ErrClosed))
	assert.True(t, errors.Is(c.Load(words.Sequence{}), ErrClosed))
	assert.True(t, errors.Is(c.SetRate("120"), ErrClosed))
	assert.Equal(t, 60, c.Rate().WPM())
}

func TestController_TimerScheduler(t *testing.T) {
	done := make(chan struct{})
	var got []string
	c := NewController(Config{
		Callbacks: Callbacks{
			OnWordShown: func(word string, index int) { got = append(got, word) },
			OnCompleted: func() { close(done) },
		},
	})
	require.NoError(t, c.Load(words.NewSequence([]string{"a", "b", "c"})))

	require.NoError(t, c.Start("1200"))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reading did not complete")
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, StateStopped, c.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "reading", StateReading.String())
	assert.Equal(t, "paused", StatePaused.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.Equal(t, "word_shown", EventWordShown.String())
	assert.Equal(t, "validation_error", EventValidationError.String())
}
