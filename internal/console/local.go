package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/acolita/gqlplus/internal/ports"
)

// ClearSequence homes the cursor and clears the terminal.
const ClearSequence = "\033[H\033[2J"

// Shell runs host commands. An empty command starts an interactive shell.
type Shell interface {
	Run(ctx context.Context, command string) error
}

// ExecShell runs host commands with /bin/sh attached to the terminal.
type ExecShell struct {
	FS     ports.FileSystem
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run runs command, or the user's $SHELL when command is empty.
func (s *ExecShell) Run(ctx context.Context, command string) error {
	if command == "" {
		command = s.FS.Getenv("SHELL")
	}
	if command == "" {
		command = "/bin/sh"
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = s.Stdin, s.Stdout, s.Stderr
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	return cmd.Run()
}

// ShellCommand extracts the command of a host escape: "!cmd", "ho cmd",
// "hos cmd" or "host cmd". The command is empty when none is given.
func ShellCommand(line string) (string, bool) {
	if strings.HasPrefix(line, "!") {
		return strings.TrimSpace(line[1:]), true
	}
	word, rest, _ := strings.Cut(line, " ")
	switch strings.ToLower(word) {
	case "ho", "hos", "host":
		return strings.TrimSpace(rest), true
	}
	return "", false
}

// host runs a host command locally. Nothing is sent to the child.
func (c *Console) host(ctx context.Context, command string) error {
	c.log.Debug("host command", slog.String("command", command))
	if err := c.shell.Run(ctx, command); err != nil {
		c.log.Info("host command failed", slog.String("error", err.Error()))
	}
	fmt.Fprintln(c.out)
	return nil
}

// clearScreen clears the terminal locally. Nothing is sent to the child.
func (c *Console) clearScreen() error {
	_, err := io.WriteString(c.out, ClearSequence)
	return err
}
