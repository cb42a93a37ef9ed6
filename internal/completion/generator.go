package completion

import "strings"

// Cursor is the resumable position of one completion attempt. The zero value
// starts a fresh attempt.
type Cursor struct {
	Entry     int
	Column    int
	PrefixLen int
}

// Next returns the next name matching prefix, case-insensitively. For each
// entry the entry name is tried first; when it does not match, the entry's
// columns are scanned before moving on. The cursor keeps the position, so
// repeated calls walk every match once.
func (ix *Index) Next(prefix string, c *Cursor) (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	want := strings.ToLower(prefix)
	if *c == (Cursor{}) {
		c.PrefixLen = len(want)
	}
	if c.PrefixLen < len(want) {
		want = want[:c.PrefixLen]
	}

	for c.Entry < len(ix.entries) {
		e := ix.entries[c.Entry]
		if c.Column == 0 && strings.HasPrefix(e.Name, want) {
			c.Entry++
			return e.Name, true
		}
		for c.Column < len(e.Columns) {
			name := e.Columns[c.Column]
			c.Column++
			if strings.HasPrefix(name, want) {
				return name, true
			}
		}
		c.Entry++
		c.Column = 0
	}
	return "", false
}
