// Package recording provides session recording in asciicast v2 format.
package recording

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acolita/gqlplus/internal/ports"
)

// Recorder records the traffic between the user and the database shell in
// asciicast v2 format.
// See: https://docs.asciinema.org/manual/asciicast/v2/
type Recorder struct {
	mu        sync.Mutex
	file      ports.FileHandle
	startTime time.Time
	closed    bool
	clock     ports.Clock
}

// Header is the asciicast v2 header.
type Header struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Title     string            `json:"title,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// Event is an asciicast v2 event [time, type, data].
type Event struct {
	Time float64 `json:"-"`
	Type string  `json:"-"`
	Data string  `json:"-"`
}

// MarshalJSON implements custom JSON marshaling for Event.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.Time, e.Type, e.Data})
}

// Options configures a Recorder.
type Options struct {
	// Dir is the directory recordings are written to.
	Dir       string
	SessionID string
	// Title is stored in the header; callers redact credentials first.
	Title  string
	Width  int
	Height int
}

// DefaultDir returns ~/.cache/gqlplus/recordings.
func DefaultDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "gqlplus", "recordings")
}

// NewRecorder creates a recording file named after the session and start time.
func NewRecorder(opts Options, fs ports.FileSystem, clock ports.Clock) (*Recorder, error) {
	if err := fs.MkdirAll(opts.Dir, 0700); err != nil {
		return nil, fmt.Errorf("create recording directory: %w", err)
	}

	filename := fmt.Sprintf("%s_%s.cast", opts.SessionID, clock.Now().Format("20060102_150405"))
	fullPath := filepath.Join(opts.Dir, filename)

	file, err := fs.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("create recording file: %w", err)
	}

	r := &Recorder{
		file:      file,
		startTime: clock.Now(),
		clock:     clock,
	}

	env := map[string]string{}
	if term := fs.Getenv("TERM"); term != "" {
		env["TERM"] = term
	}
	if shell := fs.Getenv("SHELL"); shell != "" {
		env["SHELL"] = shell
	}

	header := Header{
		Version:   2,
		Width:     opts.Width,
		Height:    opts.Height,
		Timestamp: r.startTime.Unix(),
		Title:     opts.Title,
		Env:       env,
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("marshal header: %w", err)
	}

	if _, err := file.Write(append(headerJSON, '\n')); err != nil {
		file.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	return r, nil
}

// RecordOutput records child output.
func (r *Recorder) RecordOutput(data string) error {
	return r.record("o", data)
}

// RecordInput records a line sent to the child.
// Note: Use RecordMaskedInput for password inputs.
func (r *Recorder) RecordInput(data string) error {
	return r.record("i", data)
}

// RecordMaskedInput records a line of the given length as asterisks.
func (r *Recorder) RecordMaskedInput(length int) error {
	if length < 0 {
		length = 0
	}
	return r.record("i", strings.Repeat("*", length)+"\n")
}

func (r *Recorder) record(eventType, data string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	elapsed := r.clock.Since(r.startTime).Seconds()
	event := Event{
		Time: elapsed,
		Type: eventType,
		Data: data,
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := r.file.Write(append(eventJSON, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	return nil
}

// Close closes the recording file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	return r.file.Close()
}

// Path returns the path to the recording file.
func (r *Recorder) Path() string {
	if r.file == nil {
		return ""
	}
	return r.file.Name()
}
