// Package system provides a real clock implementation.
package system

import "time"

// Clock implements monitor.Clock using time.Now.
//
// Now deliberately stays in the server's local zone: the "captured today"
// statistic is defined against local calendar days.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current local time.
func (Clock) Now() time.Time {
	return time.Now()
}
