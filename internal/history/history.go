// Package history keeps the session's command history. Lines typed at
// password prompts are never added.
package history

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/acolita/gqlplus/internal/ports"
)

// DefaultLimit is the number of lines kept when no limit is configured.
const DefaultLimit = 200

// EndMarker is printed after the history listing.
const EndMarker = "End of History"

// DefaultFileName is the history file kept in the home directory.
const DefaultFileName = ".sqlplus_history"

// DefaultFile returns the history file in the user's home directory, or ""
// when there is none.
func DefaultFile(fsys ports.FileSystem) string {
	home, err := fsys.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, DefaultFileName)
}

// Sink persists history lines, typically the line editor.
type Sink interface {
	SaveHistory(line string) error
}

// History is a bounded, ordered list of entered lines.
type History struct {
	mu    sync.Mutex
	lines []string
	limit int
	sink  Sink
}

// New creates an empty history keeping at most limit lines.
func New(limit int) *History {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &History{limit: limit}
}

// SetSink sets where added lines are persisted.
func (h *History) SetSink(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sink = s
}

// Load seeds the history from a file with one line per entry. A missing file
// is not an error.
func (h *History) Load(fsys ports.FileSystem, path string) error {
	if path == "" {
		return nil
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read history file: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			h.appendLocked(line)
		}
	}
	return nil
}

// Add records a line. Blank lines and repeats of the previous line are
// skipped.
func (h *History) Add(line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	h.mu.Lock()
	if n := len(h.lines); n > 0 && h.lines[n-1] == line {
		h.mu.Unlock()
		return nil
	}
	h.appendLocked(line)
	sink := h.sink
	h.mu.Unlock()

	if sink != nil {
		if err := sink.SaveHistory(line); err != nil {
			return fmt.Errorf("save history: %w", err)
		}
	}
	return nil
}

func (h *History) appendLocked(line string) {
	h.lines = append(h.lines, line)
	if over := len(h.lines) - h.limit; over > 0 {
		h.lines = append([]string(nil), h.lines[over:]...)
	}
}

// Lines returns a copy of the recorded lines, oldest first.
func (h *History) Lines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.lines))
	copy(out, h.lines)
	return out
}

// Len returns the number of recorded lines.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.lines)
}

// Print writes every line, each preceded by a newline, followed by the end
// marker.
func (h *History) Print(w io.Writer) error {
	var b strings.Builder
	for _, line := range h.Lines() {
		b.WriteString("\n")
		b.WriteString(line)
	}
	b.WriteString("\n" + EndMarker + "\n")
	_, err := io.WriteString(w, b.String())
	return err
}
