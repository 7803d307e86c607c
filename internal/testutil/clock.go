package testutil

import (
	"sync"
	"time"

	"github.com/juju/clock"
)

// RecordingClock satisfies the clock interface with waits that fire
// immediately, recording each requested delay. It keeps retry tests
// fast and lets them assert on the backoff schedule.
type RecordingClock struct {
	mu     sync.Mutex
	delays []time.Duration
}

var _ clock.Clock = (*RecordingClock)(nil)

// Now returns the wall-clock time.
func (c *RecordingClock) Now() time.Time {
	return time.Now()
}

// After records d and returns a channel that is already ready.
func (c *RecordingClock) After(d time.Duration) <-chan time.Time {
	c.record(d)
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

// AfterFunc records d, runs f synchronously and returns a fired timer.
func (c *RecordingClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.record(d)
	f()
	return firedTimer()
}

// NewTimer records d and returns a timer that has already fired.
func (c *RecordingClock) NewTimer(d time.Duration) clock.Timer {
	c.record(d)
	return firedTimer()
}

// At returns a channel that is already ready. Absolute waits fire
// immediately and are not recorded as delays.
func (c *RecordingClock) At(t time.Time) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

// AtFunc runs f synchronously and returns an alarm that has already
// fired.
func (c *RecordingClock) AtFunc(t time.Time, f func()) clock.Alarm {
	f()
	return firedAlarm()
}

// NewAlarm returns an alarm that has already fired.
func (c *RecordingClock) NewAlarm(t time.Time) clock.Alarm {
	return firedAlarm()
}

// Delays returns the waits requested so far, in order.
func (c *RecordingClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.delays))
	copy(out, c.delays)
	return out
}

func (c *RecordingClock) record(d time.Duration) {
	c.mu.Lock()
	c.delays = append(c.delays, d)
	c.mu.Unlock()
}

type chanTimer struct {
	ch chan time.Time
}

func firedTimer() clock.Timer {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return chanTimer{ch: ch}
}

func (t chanTimer) Chan() <-chan time.Time {
	return t.ch
}

func (t chanTimer) Reset(time.Duration) bool { return true }

func (t chanTimer) Stop() bool { return false }

type chanAlarm struct {
	ch chan time.Time
}

func firedAlarm() clock.Alarm {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return chanAlarm{ch: ch}
}

func (a chanAlarm) Chan() <-chan time.Time {
	return a.ch
}

func (a chanAlarm) Reset(time.Time) bool { return true }

func (a chanAlarm) Stop() bool { return false }
