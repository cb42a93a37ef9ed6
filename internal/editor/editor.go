// Package editor finds and launches the external text editor used by the
// "edit" command, and converts between the child's statement listing and
// the scratch file the user edits.
package editor

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/shlex"

	"github.com/acolita/gqlplus/internal/ports"
)

// DefaultEditor is used when nothing else names an editor.
const DefaultEditor = "/bin/vi"

// ErrNotFound is returned when the editor executable cannot be located.
var ErrNotFound = errors.New("editor executable not found")

// LookPathFunc resolves a command name to an executable path.
type LookPathFunc func(name string) (string, error)

// Command is a resolved editor invocation.
type Command struct {
	// Name is the executable as the user wrote it.
	Name string
	// Path is the resolved executable.
	Path string
	Args []string
}

// String returns the command line as configured.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Resolve tokenizes a command line such as `emacs -nw` and resolves the
// executable. Relative names are looked up in PATH.
func Resolve(cmdline string, lookPath LookPathFunc) (Command, error) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	words, err := shlex.Split(cmdline)
	if err != nil {
		return Command{}, fmt.Errorf("parse editor command %q: %w", cmdline, err)
	}
	if len(words) == 0 {
		return Command{}, fmt.Errorf("%w: empty command", ErrNotFound)
	}

	cmd := Command{Name: words[0], Path: words[0], Args: words[1:]}
	if !filepath.IsAbs(cmd.Name) {
		path, err := lookPath(cmd.Name)
		if err != nil {
			return cmd, fmt.Errorf("%w: %s", ErrNotFound, cmd.Name)
		}
		cmd.Path = path
	}
	return cmd, nil
}

// IsDefine reports whether line is a "define _editor" command.
func IsDefine(line string) bool {
	lower := strings.ToLower(line)
	return !strings.HasPrefix(strings.TrimSpace(line), "#") &&
		strings.Contains(lower, "define") &&
		strings.Contains(lower, "_editor")
}

// ParseDefine extracts the editor command from a line such as
// `define _editor = "emacs -nw";`.
func ParseDefine(line string) (string, bool) {
	if !IsDefine(line) {
		return "", false
	}
	i := strings.LastIndex(line, "=")
	if i < 0 {
		return "", false
	}
	value := strings.TrimLeft(line[i+1:], " \"")
	if j := strings.LastIndex(value, ";"); j >= 0 {
		value = value[:j]
	}
	if j := strings.LastIndex(value, `"`); j >= 0 {
		value = value[:j]
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// LoginFiles returns the files sqlplus reads at startup that may define the
// editor, in the order they are searched: login.sql in the working
// directory, then in each $SQLPATH directory, stopping at the first login.sql
// that exists, and otherwise $ORACLE_HOME/sqlplus/admin/glogin.sql.
func LoginFiles(fs ports.FileSystem) []string {
	var candidates []string
	if wd, err := fs.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(wd, "login.sql"))
	}
	for _, dir := range filepath.SplitList(fs.Getenv("SQLPATH")) {
		if dir != "" {
			candidates = append(candidates, filepath.Join(dir, "login.sql"))
		}
	}
	for _, path := range candidates {
		if _, err := fs.Stat(path); err == nil {
			return []string{path}
		}
	}

	if home := fs.Getenv("ORACLE_HOME"); home != "" {
		return []string{filepath.Join(home, "sqlplus", "admin", "glogin.sql")}
	}
	return nil
}

// FromLoginFiles returns the first editor defined in the startup files.
func FromLoginFiles(fs ports.FileSystem) (string, bool) {
	for _, path := range LoginFiles(fs) {
		data, err := fs.ReadFile(path)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			if cmd, ok := ParseDefine(line); ok {
				return cmd, true
			}
		}
	}
	return "", false
}

// Discover picks the editor command line: the configured one, then a
// startup file definition, then $EDITOR, then DefaultEditor.
func Discover(configured string, fs ports.FileSystem) string {
	if configured != "" {
		return configured
	}
	if cmd, ok := FromLoginFiles(fs); ok {
		return cmd
	}
	if env := fs.Getenv("EDITOR"); env != "" {
		return env
	}
	return DefaultEditor
}
