package testutil

import (
	"sync/atomic"
	"time"
)

// Epoch is where every new Clock starts.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock is a manual time source for session and refresh timestamps.
type Clock struct {
	elapsed atomic.Int64
}

// NewClock returns a Clock standing at Epoch.
func NewClock() *Clock { return &Clock{} }

// Now matches the func() time.Time hooks taken by Curio components.
func (c *Clock) Now() time.Time {
	return Epoch.Add(time.Duration(c.elapsed.Load()))
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.elapsed.Add(int64(d))
}
