// Package completion builds the table, view and column name index used for
// tab completion, by querying the connected child.
package completion

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/acolita/gqlplus/internal/session"
)

// Commands sent to the child while indexing.
const (
	PagesizeCommand    = "show pagesize"
	TablesQuery        = "select distinct table_name, owner from all_tables where owner != 'SYS' union select distinct view_name, owner from all_views where owner != 'SYS';"
	DescribeCommand    = "describe"
	ClearBufferCommand = "del 1 LAST"
)

// ErrUnavailable is returned when the child answered an indexing query with
// an error. Completion stays off for the rest of the session.
var ErrUnavailable = errors.New("schema completion unavailable")

var errorMarkers = []string{"ORA-", "SP2-"}

// Entry is one table or view.
type Entry struct {
	Name    string
	Owner   string
	Columns []string
}

// Querier sends one command to the child and returns its captured output.
type Querier interface {
	Query(cmd string) (string, error)
}

// Index holds the entries discovered by the last successful rebuild.
type Index struct {
	mu       sync.RWMutex
	columns  bool
	entries  []Entry
	built    bool
	disabled bool
}

// NewIndex creates an empty index. When columns is false, tables are not
// described and only table and view names complete.
func NewIndex(columns bool) *Index {
	return &Index{columns: columns}
}

// Columns reports whether column names are indexed.
func (ix *Index) Columns() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.columns
}

// Built reports whether the index reflects the current connection.
func (ix *Index) Built() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.built
}

// Disabled reports whether a failed rebuild turned completion off.
func (ix *Index) Disabled() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.disabled
}

// Invalidate marks the index stale so it is rebuilt before the next use.
func (ix *Index) Invalidate() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.built = false
}

// Entries returns the indexed entries.
func (ix *Index) Entries() []Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.entries
}

// SetEntries replaces the entries wholesale.
func (ix *Index) SetEntries(entries []Entry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = entries
	ix.built = true
}

// Rebuild queries the child for table and view names and, when enabled, their
// columns. The entries are replaced only when every query succeeds. The
// child's SQL buffer is cleared afterwards unless the child announced its
// termination.
func (ix *Index) Rebuild(q Querier) error {
	if ix.Disabled() {
		return ErrUnavailable
	}

	entries, err := ix.fetch(q)
	if errors.Is(err, session.ErrTerminated) {
		return err
	}
	if _, derr := q.Query(ClearBufferCommand); derr != nil && err == nil {
		err = fmt.Errorf("clear sql buffer: %w", derr)
	}
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			ix.mu.Lock()
			ix.disabled = true
			ix.mu.Unlock()
		}
		return err
	}

	ix.SetEntries(entries)
	return nil
}

func (ix *Index) fetch(q Querier) ([]Entry, error) {
	out, err := query(q, PagesizeCommand)
	if err != nil {
		return nil, err
	}
	pagesize := ParsePagesize(out)

	out, err = query(q, TablesQuery)
	if err != nil {
		return nil, err
	}
	entries := ParseNames(out, pagesize)

	if ix.Columns() {
		for i := range entries {
			out, err := query(q, describe(entries[i]))
			if err != nil {
				return nil, err
			}
			entries[i].Columns = ParseColumns(out)
		}
	}
	return entries, nil
}

func query(q Querier, cmd string) (string, error) {
	out, err := q.Query(cmd)
	if err != nil {
		return "", err
	}
	for _, m := range errorMarkers {
		if strings.Contains(out, m) {
			return "", fmt.Errorf("%w: %q answered with %s", ErrUnavailable, cmd, firstLineWith(out, m))
		}
	}
	return out, nil
}

func describe(e Entry) string {
	if e.Owner != "" {
		return DescribeCommand + " " + e.Owner + "." + e.Name
	}
	return DescribeCommand + " " + e.Name
}

func firstLineWith(s, sub string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.Contains(line, sub) {
			return strings.TrimSpace(line)
		}
	}
	return sub
}
