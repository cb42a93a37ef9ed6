package completion

import (
	"strings"

	"github.com/chzyer/readline"
)

// WordBreaks are the characters that delimit the word being completed.
const WordBreaks = " \t\n\"\\'`@$><=;|&{(,"

// Completer adapts an Index to readline's AutoCompleter. Every call is a
// fresh completion attempt.
type Completer struct {
	Index *Index
	// Enabled gates completion; it is consulted on every attempt.
	Enabled func() bool
}

var _ readline.AutoCompleter = (*Completer)(nil)

// Do returns the suffixes that complete the word before pos, and the length
// of that word.
func (c *Completer) Do(line []rune, pos int) ([][]rune, int) {
	if c.Index == nil || (c.Enabled != nil && !c.Enabled()) {
		return nil, 0
	}
	if pos > len(line) {
		pos = len(line)
	}

	start := pos
	for start > 0 && !strings.ContainsRune(WordBreaks, line[start-1]) {
		start--
	}
	prefix := string(line[start:pos])
	if prefix == "" {
		return nil, 0
	}

	// Names are matched and sliced in lower case, whose byte length may
	// differ from the typed word.
	want := strings.ToLower(prefix)
	upper := prefix == strings.ToUpper(prefix) && prefix != want
	seen := make(map[string]bool)
	var out [][]rune

	var cur Cursor
	for {
		name, ok := c.Index.Next(prefix, &cur)
		if !ok {
			break
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		if !strings.HasPrefix(name, want) {
			continue
		}
		suffix := name[len(want):]
		if upper {
			suffix = strings.ToUpper(suffix)
		}
		out = append(out, []rune(suffix))
	}
	return out, len([]rune(prefix))
}
