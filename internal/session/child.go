package session

import (
	"io"
	"time"
)

// Child defines the duplex channel to the database shell. Both the real
// process and the test fake implement it.
type Child interface {
	io.Reader

	// WriteString writes a string to the child's input.
	WriteString(s string) (int, error)

	// SetReadDeadline bounds subsequent reads. The zero time restores
	// blocking reads.
	SetReadDeadline(t time.Time) error

	// Interrupt sends SIGINT.
	Interrupt() error

	// Terminate sends SIGTERM.
	Terminate() error

	// Close releases the channel.
	Close() error
}

// Recorder receives a copy of the session traffic.
type Recorder interface {
	RecordOutput(data string) error
	RecordInput(data string) error
	RecordMaskedInput(length int) error
}
