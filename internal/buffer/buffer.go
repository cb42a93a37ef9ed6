// Package buffer provides the growable byte buffer used to accumulate child
// output until a turn is complete.
package buffer

import "bytes"

// InitialCapacity is the capacity of a freshly allocated buffer.
const InitialCapacity = 100

// Buffer is an unbounded append-only byte buffer that grows by doubling.
type Buffer struct {
	data []byte
}

// New returns an empty buffer.
func New() *Buffer {
	return &Buffer{data: make([]byte, 0, InitialCapacity)}
}

// Append adds p to the end of the buffer.
func (b *Buffer) Append(p []byte) {
	if b.data == nil {
		b.data = make([]byte, 0, InitialCapacity)
	}
	need := len(b.data) + len(p)
	if need > cap(b.data) {
		newCap := cap(b.data)
		for newCap < need {
			newCap *= 2
		}
		grown := make([]byte, len(b.data), newCap)
		copy(grown, b.data)
		b.data = grown
	}
	b.data = append(b.data, p...)
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int { return len(b.data) }

// Cap returns the current allocated capacity.
func (b *Buffer) Cap() int { return cap(b.data) }

// Bytes returns the buffered bytes. The slice is only valid until the next
// mutation.
func (b *Buffer) Bytes() []byte { return b.data }

// String returns the buffered bytes as a string.
func (b *Buffer) String() string { return string(b.data) }

// Reset empties the buffer, keeping its capacity.
func (b *Buffer) Reset() { b.data = b.data[:0] }

// Flush removes and returns everything before the last newline. The newline
// itself and whatever follows it stay buffered, so the line being formed is
// never split. With no newline present nothing is flushed.
func (b *Buffer) Flush() []byte {
	i := bytes.LastIndexByte(b.data, '\n')
	if i <= 0 {
		return nil
	}
	out := make([]byte, i)
	copy(out, b.data[:i])
	n := copy(b.data, b.data[i:])
	b.data = b.data[:n]
	return out
}

// Take removes and returns the whole content.
func (b *Buffer) Take() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	b.Reset()
	return out
}

// LastLine returns the text after the last newline, or the whole buffer when
// it holds no newline.
func (b *Buffer) LastLine() string {
	i := bytes.LastIndexByte(b.data, '\n')
	return string(b.data[i+1:])
}
