package editor

import (
	"strings"
)

// Child output around the "edit" round trip.
const (
	// NoLines is printed by "list" when the statement buffer is empty.
	NoLines = "No lines in SQL buffer."
	// NothingToSave is shown instead of starting the editor.
	NothingToSave = "Nothing to save."
	// Terminator ends a statement in the scratch file.
	Terminator = "/"
)

// numberWidth is the width of the line number prefix in a listing, "  1* ".
const numberWidth = 5

// FileName appends ext to name unless it already ends with it.
func FileName(name, ext string) string {
	if ext == "" || strings.HasSuffix(name, ext) {
		return name
	}
	return name + ext
}

// ScratchContent turns a statement listing into scratch file content: the
// line number prefix is removed from every line and a terminator line is
// appended.
func ScratchContent(listing string) string {
	var b strings.Builder
	for {
		i := strings.IndexByte(listing, '\n')
		if i < 0 {
			break
		}
		line := listing[:i]
		if len(line) > numberWidth {
			b.WriteString(line[numberWidth:])
		}
		b.WriteByte('\n')
		listing = listing[i+1:]
	}
	b.WriteString(Terminator + "\n")
	return b.String()
}

// ReplayLines returns the lines to insert back into the statement buffer:
// a single trailing terminator line is dropped, as are empty lines.
func ReplayLines(content string) []string {
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	if n := len(lines); n > 0 && strings.TrimRight(lines[n-1], " \t\r") == Terminator {
		lines = lines[:n-1]
	}

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
