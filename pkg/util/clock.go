package util

import "time"

type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

type RealClock struct{}

func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (RealClock) Now() time.Time                         { return time.Now() }

// FixedClock always reports the same instant. After fires immediately.
type FixedClock struct{ At time.Time }

func (c FixedClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.At
	return ch
}
func (c FixedClock) Now() time.Time { return c.At }

// NowMillis returns the clock's current time as Unix milliseconds.
func NowMillis(c Clock) uint64 { return uint64(c.Now().UnixMilli()) }
