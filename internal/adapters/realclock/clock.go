// Package realclock provides a real implementation of the Clock port using the time package.
package realclock

import (
	"time"

	"github.com/acolita/gqlplus/internal/ports"
)

// Clock implements ports.Clock using the standard time package.
type Clock struct{}

// New returns a new real Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	return time.Now()
}

// Sleep pauses execution for the specified duration.
func (c *Clock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// Since returns the time elapsed since t.
func (c *Clock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// Ensure Clock implements ports.Clock.
var _ ports.Clock = (*Clock)(nil)
