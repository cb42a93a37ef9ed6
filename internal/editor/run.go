package editor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/acolita/gqlplus/internal/ports"
)

// Runner starts the editor on a file and waits for it to exit.
type Runner interface {
	Run(ctx context.Context, cmd Command, file string) error
}

// Args returns the argument list for editing file. Emacs without -nw is told
// which display to open its window on.
func Args(cmd Command, file string, fs ports.FileSystem) []string {
	args := append(append([]string{}, cmd.Args...), file)
	if filepath.Base(cmd.Path) == "emacs" && (len(cmd.Args) == 0 || cmd.Args[0] != "-nw") {
		if display := fs.Getenv("DISPLAY"); display != "" {
			args = append(args, "-d", display)
		}
	}
	return args
}

// Env returns the environment the editor runs with.
func Env(fs ports.FileSystem) []string {
	var env []string
	for _, key := range []string{"TERM", "PATH", "HOME"} {
		if v := fs.Getenv(key); v != "" {
			env = append(env, key+"="+v)
		}
	}
	return env
}

// ExecRunner runs the editor attached to the terminal.
type ExecRunner struct {
	FS     ports.FileSystem
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run starts the editor and waits for it.
func (r *ExecRunner) Run(ctx context.Context, cmd Command, file string) error {
	c := exec.CommandContext(ctx, cmd.Path, Args(cmd, file, r.FS)...)
	c.Env = Env(r.FS)
	c.Stdin = r.Stdin
	c.Stdout = r.Stdout
	c.Stderr = r.Stderr
	if c.Stdin == nil {
		c.Stdin = os.Stdin
	}
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}

	if err := c.Run(); err != nil {
		return fmt.Errorf("run editor %s: %w", cmd.Name, err)
	}
	return nil
}
