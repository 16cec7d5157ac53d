// Package playbacktest provides a virtual clock scheduler for tests.
package playbacktest

import (
	"sort"
	"sync"
	"time"
)

// Scheduler implements playback.Scheduler on a virtual clock.
// Timers only fire from Advance.
type Scheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*timer
}

type timer struct {
	at        time.Duration
	seq       int
	fn        func()
	cancelled bool
}

// NewScheduler creates a scheduler whose clock starts at zero.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// AfterFunc schedules fn at now+d.
func (s *Scheduler) AfterFunc(d time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := &timer{at: s.now + d, seq: s.seq, fn: fn}
	s.timers = append(s.timers, t)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		t.cancelled = true
	}
}

// Advance moves the clock forward by d, firing due timers in order.
// Callbacks run without the scheduler lock held.
func (s *Scheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	for {
		s.compactLocked()
		if len(s.timers) == 0 || s.timers[0].at > target {
			break
		}
		t := s.timers[0]
		s.timers = s.timers[1:]
		s.now = t.at
		s.mu.Unlock()
		t.fn()
		s.mu.Lock()
	}
	s.now = target
	s.mu.Unlock()
}

// FireCancelled runs the callbacks of cancelled timers that have not been
// discarded yet, like a timer that fired just before it was stopped.
func (s *Scheduler) FireCancelled() {
	s.mu.Lock()
	var fns []func()
	for _, t := range s.timers {
		if t.cancelled {
			fns = append(fns, t.fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Now returns the virtual time elapsed since creation.
func (s *Scheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending returns the number of live timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.cancelled {
			n++
		}
	}
	return n
}

func (s *Scheduler) compactLocked() {
	live := s.timers[:0]
	for _, t := range s.timers {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	s.timers = live
	sort.Slice(s.timers, func(i, j int) bool {
		if s.timers[i].at == s.timers[j].at {
			return s.timers[i].seq < s.timers[j].seq
		}
		return s.timers[i].at < s.timers[j].at
	})
}
