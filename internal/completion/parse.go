package completion

import (
	"regexp"
	"strconv"
	"strings"
)

var footerRe = regexp.MustCompile(`^(\d+ rows? selected|no rows selected)`)

// ParsePagesize extracts N from a "pagesize N" reply. Unparseable replies
// yield 0.
func ParsePagesize(reply string) int {
	for _, line := range strings.Split(reply, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && strings.EqualFold(fields[0], "pagesize") {
			n, err := strconv.Atoi(fields[1])
			if err == nil {
				return n
			}
		}
	}
	return 0
}

// ParseNames parses the two-column name/owner listing of the tables query.
// With a non-zero pagesize the listing starts with a heading line, which is
// skipped along with repeated headings, separators and the footer. Names and
// owners are lowercased.
func ParseNames(reply string, pagesize int) []Entry {
	var entries []Entry
	skipHeading := pagesize > 0

	for _, line := range strings.Split(reply, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if skipHeading {
			skipHeading = false
			continue
		}
		if isSeparator(trimmed) || footerRe.MatchString(trimmed) {
			continue
		}
		fields := strings.Fields(trimmed)
		if fields[0] == "TABLE_NAME" || fields[0] == "VIEW_NAME" {
			continue
		}

		e := Entry{Name: strings.ToLower(fields[0])}
		if len(fields) > 1 {
			e.Owner = strings.ToLower(fields[1])
		}
		entries = append(entries, e)
	}
	return entries
}

// ParseColumns parses a describe listing: the first word of every line after
// the dashed separator, lowercased, in order.
func ParseColumns(reply string) []string {
	var columns []string
	seen := false

	for _, line := range strings.Split(reply, "\n") {
		trimmed := strings.TrimSpace(line)
		if !seen {
			seen = strings.Contains(trimmed, "------")
			continue
		}
		if trimmed == "" {
			continue
		}
		columns = append(columns, strings.ToLower(strings.Fields(trimmed)[0]))
	}
	return columns
}

func isSeparator(s string) bool {
	return strings.Contains(s, "------") && strings.Trim(s, "- ") == ""
}
