// Package system provides the wall clock behind monitor.Clock.
package system

import "time"

// Clock reports the current time in UTC, truncated to the millisecond
// precision used by report timestamps.
type Clock struct {
	now func() time.Time
}

// New creates a Clock backed by time.Now.
func New() *Clock {
	return &Clock{now: time.Now}
}

// Now returns the current UTC time at millisecond precision.
func (c *Clock) Now() time.Time {
	now := c.now
	if now == nil {
		now = time.Now
	}
	return now().UTC().Truncate(time.Millisecond)
}
