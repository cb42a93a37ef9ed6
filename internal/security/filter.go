// Package security provides the local command filter.
package security

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// CommandFilter refuses input lines matching blocklist patterns before they
// reach the database shell.
type CommandFilter struct {
	mu        sync.RWMutex
	blocklist []*regexp.Regexp
}

// NewCommandFilter creates a new command filter with the given patterns.
func NewCommandFilter(blocklist []string) (*CommandFilter, error) {
	cf := &CommandFilter{}
	if err := cf.Update(blocklist); err != nil {
		return nil, err
	}
	return cf, nil
}

// Update replaces the patterns. On error the previous patterns stay in effect.
func (cf *CommandFilter) Update(blocklist []string) error {
	compiled := make([]*regexp.Regexp, 0, len(blocklist))
	for _, pattern := range blocklist {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid blocklist pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}

	cf.mu.Lock()
	cf.blocklist = compiled
	cf.mu.Unlock()
	return nil
}

// IsAllowed checks if a line may be sent.
// Returns (allowed, reason).
func (cf *CommandFilter) IsAllowed(line string) (bool, string) {
	cf.mu.RLock()
	defer cf.mu.RUnlock()

	line = strings.TrimSpace(line)
	for _, re := range cf.blocklist {
		if re.MatchString(line) {
			return false, fmt.Sprintf("command blocked by pattern: %s", re.String())
		}
	}
	return true, ""
}

// HasBlocklist returns true if any blocklist patterns are configured.
func (cf *CommandFilter) HasBlocklist() bool {
	cf.mu.RLock()
	defer cf.mu.RUnlock()
	return len(cf.blocklist) > 0
}
