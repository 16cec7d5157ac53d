package playback

import "time"

// Scheduler runs a callback once after a delay.
type Scheduler interface {
	// AfterFunc schedules fn to run after d and returns a function that cancels it.
	AfterFunc(d time.Duration, fn func()) (cancel func())
}

// TimerScheduler schedules callbacks with time.AfterFunc.
type TimerScheduler struct{}

// AfterFunc implements Scheduler.
func (TimerScheduler) AfterFunc(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() {
		t.Stop()
	}
}
