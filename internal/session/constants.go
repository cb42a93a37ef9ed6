package session

import "time"

const (
	// DefaultReadSize is the size of a single read from the child.
	DefaultReadSize = 4096

	// DefaultPollInterval bounds each non-blocking read.
	DefaultPollInterval = 10 * time.Millisecond

	// DefaultReplyQuiet is how long a reply must stay silent before it is
	// considered complete.
	DefaultReplyQuiet = 50 * time.Millisecond

	// DefaultDrainDelay is the pause before the final drain at exit.
	DefaultDrainDelay = 100 * time.Millisecond
)
