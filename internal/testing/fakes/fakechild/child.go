// Package fakechild provides a scripted child process for testing session logic
// without spawning a real database shell.
package fakechild

import (
	"bytes"
	"io"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"
)

// chunk is one scripted Read result.
type chunk struct {
	data []byte
	err  error
}

// Child is a fake child process. Reads return queued chunks in order. When the
// queue is empty a read under a deadline times out and a blocking read reports
// EOF, which is how a real child looks once it has exited.
type Child struct {
	mu           sync.Mutex
	queue        []chunk
	written      bytes.Buffer
	partial      string
	lines        []string
	respond      func(line string) []string
	readDeadline time.Time
	deadlines    []time.Time
	closed       bool
	broken       bool
	interrupts   int
	terminated   bool
}

// New creates a new fake child.
func New() *Child {
	return &Child{}
}

// AddResponse queues data to be returned by a later Read.
func (c *Child) AddResponse(data string) *Child {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, chunk{data: []byte(data)})
	return c
}

// AddResponses queues multiple responses.
func (c *Child) AddResponses(responses ...string) *Child {
	for _, r := range responses {
		c.AddResponse(r)
	}
	return c
}

// AddError queues an error to be returned by a later Read.
func (c *Child) AddError(err error) *Child {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, chunk{err: err})
	return c
}

// OnLine installs a hook called for every complete line written to the child.
// The returned strings are queued as responses.
func (c *Child) OnLine(fn func(line string) []string) *Child {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.respond = fn
	return c
}

// SetBroken makes subsequent writes fail with EPIPE.
func (c *Child) SetBroken(broken bool) *Child {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broken = broken
	return c
}

// Read implements io.Reader.
func (c *Child) Read(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, os.ErrClosed
	}
	if len(c.queue) == 0 {
		if !c.readDeadline.IsZero() {
			return 0, os.ErrDeadlineExceeded
		}
		return 0, io.EOF
	}

	head := &c.queue[0]
	if head.err != nil {
		err := head.err
		c.queue = c.queue[1:]
		return 0, err
	}
	n := copy(b, head.data)
	head.data = head.data[n:]
	if len(head.data) == 0 {
		c.queue = c.queue[1:]
	}
	return n, nil
}

// Write implements io.Writer.
func (c *Child) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, os.ErrClosed
	}
	if c.broken {
		return 0, &os.PathError{Op: "write", Path: "|1", Err: syscall.EPIPE}
	}
	c.written.Write(b)

	c.partial += string(b)
	for {
		i := strings.IndexByte(c.partial, '\n')
		if i < 0 {
			break
		}
		line := c.partial[:i]
		c.partial = c.partial[i+1:]
		c.lines = append(c.lines, line)
		if c.respond != nil {
			for _, r := range c.respond(line) {
				c.queue = append(c.queue, chunk{data: []byte(r)})
			}
		}
	}
	return len(b), nil
}

// WriteString writes a string to the child.
func (c *Child) WriteString(s string) (int, error) {
	return c.Write([]byte(s))
}

// SetReadDeadline sets the read deadline. The zero time restores blocking reads.
func (c *Child) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readDeadline = t
	c.deadlines = append(c.deadlines, t)
	return nil
}

// Interrupt records a SIGINT.
func (c *Child) Interrupt() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interrupts++
	return nil
}

// Terminate records a SIGTERM.
func (c *Child) Terminate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terminated = true
	return nil
}

// Close closes the fake child.
func (c *Child) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// --- Test inspection methods ---

// Written returns all data written to the child.
func (c *Child) Written() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written.String()
}

// Lines returns the complete lines written to the child.
func (c *Child) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

// Pending returns the number of queued responses not yet read.
func (c *Child) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Deadline returns the current read deadline.
func (c *Child) Deadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readDeadline
}

// DeadlineCalls returns how many times SetReadDeadline was called.
func (c *Child) DeadlineCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deadlines)
}

// Interrupts returns the number of Interrupt calls.
func (c *Child) Interrupts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interrupts
}

// WasTerminated returns true if Terminate was called.
func (c *Child) WasTerminated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminated
}

// IsClosed returns true if Close was called.
func (c *Child) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
