// Package launcher prepares the database shell invocation: front-end
// switches are separated from the child's arguments, the executable is
// located and the child's environment is assembled.
package launcher

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/acolita/gqlplus/internal/ports"
)

// BinaryName is the executable looked up in PATH and $ORACLE_HOME/bin.
const BinaryName = "sqlplus"

// ErrNotFound is returned when no usable executable exists.
var ErrNotFound = errors.New("sqlplus binary could not be found or is not executable :(")

// Switches are the front-end's own command-line options.
type Switches struct {
	// NoColumns disables column name completion (-d, -dc).
	NoColumns bool
	// Progress shows elapsed time and scan messages (-p).
	Progress bool
	// Usage prints the front-end usage at exit (-h).
	Usage bool
	// VersionOnly skips the interactive loop (-V).
	VersionOnly bool
	// NoLog starts disconnected (/nolog).
	NoLog bool
	// ConfigPath selects the configuration file (--config).
	ConfigPath string
}

// SplitArgs separates front-end switches from the arguments passed to the
// child. -h, -V and /nolog are noted and also passed on, since the child
// acts on them too.
func SplitArgs(args []string) (Switches, []string) {
	var sw Switches
	child := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-d" || arg == "-dc":
			sw.NoColumns = true
		case arg == "-p":
			sw.Progress = true
		case arg == "--config" && i+1 < len(args):
			i++
			sw.ConfigPath = args[i]
		case strings.HasPrefix(arg, "--config="):
			sw.ConfigPath = strings.TrimPrefix(arg, "--config=")
		default:
			switch {
			case arg == "-h":
				sw.Usage = true
			case arg == "-V":
				sw.VersionOnly = true
			case strings.EqualFold(arg, "/nolog"):
				sw.NoLog = true
			}
			child = append(child, arg)
		}
	}
	return sw, child
}

// LookPathFunc resolves a command name in PATH.
type LookPathFunc func(name string) (string, error)

// FindBinary locates the executable: $SQLPLUS_BIN, the configured path,
// PATH, $ORACLE_HOME/bin and the working directory, in that order.
func FindBinary(fs ports.FileSystem, configured string, lookPath LookPathFunc) (string, error) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	if bin := fs.Getenv("SQLPLUS_BIN"); bin != "" {
		if isExecutable(fs, bin) {
			return bin, nil
		}
		return "", fmt.Errorf("%w: SQLPLUS_BIN=%s", ErrNotFound, bin)
	}
	if configured != "" {
		if isExecutable(fs, configured) {
			return configured, nil
		}
		return "", fmt.Errorf("%w: %s", ErrNotFound, configured)
	}

	if path, err := lookPath(BinaryName); err == nil {
		return path, nil
	}
	if home := fs.Getenv("ORACLE_HOME"); home != "" {
		path := filepath.Join(home, "bin", BinaryName)
		if isExecutable(fs, path) {
			return path, nil
		}
	}
	if wd, err := fs.Getwd(); err == nil {
		path := filepath.Join(wd, BinaryName)
		if isExecutable(fs, path) {
			return path, nil
		}
	}
	return "", ErrNotFound
}

func isExecutable(fs ports.FileSystem, path string) bool {
	info, err := fs.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Mode().Perm()&0111 != 0
}

// EnvironmentKeys are passed from the front-end's environment to the child.
var EnvironmentKeys = []string{
	"ORACLE_HOME",
	"ORACLE_SID",
	"TNS_ADMIN",
	"SQLPATH",
	"NLS_LANG",
	"ORA_NLS33",
	"NLS_DATE_FORMAT",
	"NLS_COMP",
	"NLS_SORT",
	"LD_LIBRARY_PATH",
	"DYLD_LIBRARY_PATH",
	"ORACLE_PATH",
	"TWO_TASK",
}

// Environment returns the child's environment: the curated variables plus
// extra, each included only when set.
func Environment(fs ports.FileSystem, extra []string) []string {
	seen := make(map[string]bool, len(EnvironmentKeys)+len(extra))
	var env []string
	for _, key := range append(append([]string{}, EnvironmentKeys...), extra...) {
		if seen[key] {
			continue
		}
		seen[key] = true
		if v := fs.Getenv(key); v != "" {
			env = append(env, key+"="+v)
		}
	}
	return env
}
