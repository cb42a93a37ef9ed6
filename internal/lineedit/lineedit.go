// Package lineedit reads keyboard lines for the console: a readline editor with
// history and completion on a terminal, a plain line reader otherwise.
package lineedit

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"
)

// ErrInterrupt is returned when the user presses Ctrl-C at the prompt.
var ErrInterrupt = errors.New("interrupted")

// Editor reads one line of user input at a time. io.EOF means the user
// closed the input.
type Editor interface {
	ReadLine(prompt string) (string, error)
	// ReadPassword reads a line without echo.
	ReadPassword(prompt string) (string, error)
	SaveHistory(line string) error
	Close() error
}

// Options configures New.
type Options struct {
	HistoryFile  string
	HistoryLimit int
	Completer    readline.AutoCompleter

	Stdin  *os.File
	Stdout io.Writer
	Stderr io.Writer
}

// New returns a readline editor when stdin is a terminal and a plain reader
// otherwise.
func New(opts Options) (Editor, error) {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if !term.IsTerminal(int(opts.Stdin.Fd())) {
		return NewPlain(opts.Stdin, opts.Stdout), nil
	}
	return NewReadline(opts)
}

// --- readline ---

// Readline is the interactive editor.
type Readline struct {
	rl *readline.Instance
}

// NewReadline creates a readline editor. History is only saved through
// SaveHistory, so password answers never reach the history file.
func NewReadline(opts Options) (*Readline, error) {
	cfg := &readline.Config{
		HistoryFile:            opts.HistoryFile,
		HistoryLimit:           opts.HistoryLimit,
		DisableAutoSaveHistory: true,
		AutoComplete:           opts.Completer,
		InterruptPrompt:        "^C",
		HistorySearchFold:      true,
		FuncFilterInputRune:    filterInput,
	}
	if opts.Stdin != nil {
		cfg.Stdin = opts.Stdin
	}
	if opts.Stdout != nil {
		cfg.Stdout = opts.Stdout
	}
	if opts.Stderr != nil {
		cfg.Stderr = opts.Stderr
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, fmt.Errorf("create line editor: %w", err)
	}
	return &Readline{rl: rl}, nil
}

// filterInput drops Ctrl-Z, which would suspend the front-end but not the
// child.
func filterInput(r rune) (rune, bool) {
	if r == readline.CharCtrlZ {
		return r, false
	}
	return r, true
}

// ReadLine shows prompt and reads a line.
func (r *Readline) ReadLine(prompt string) (string, error) {
	r.rl.SetPrompt(prompt)
	line, err := r.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", ErrInterrupt
	}
	return line, err
}

// ReadPassword reads a line without echo.
func (r *Readline) ReadPassword(prompt string) (string, error) {
	b, err := r.rl.ReadPassword(prompt)
	if errors.Is(err, readline.ErrInterrupt) {
		return "", ErrInterrupt
	}
	return string(b), err
}

// SaveHistory appends line to the history file.
func (r *Readline) SaveHistory(line string) error {
	return r.rl.SaveHistory(line)
}

// Close restores the terminal.
func (r *Readline) Close() error {
	return r.rl.Close()
}

// --- plain ---

// Plain reads lines from a non-interactive input such as a pipe or a script.
type Plain struct {
	in  *bufio.Reader
	fd  int
	tty bool
	out io.Writer
}

// NewPlain creates a plain reader. Passwords are read without echo when in
// is a terminal.
func NewPlain(in io.Reader, out io.Writer) *Plain {
	p := &Plain{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(interface{ Fd() uintptr }); ok {
		p.fd = int(f.Fd())
		p.tty = term.IsTerminal(p.fd)
	}
	return p
}

// ReadLine writes prompt and reads up to the next newline.
func (p *Plain) ReadLine(prompt string) (string, error) {
	if prompt != "" {
		io.WriteString(p.out, prompt)
	}
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ReadPassword reads a line without echo on a terminal.
func (p *Plain) ReadPassword(prompt string) (string, error) {
	if !p.tty {
		return p.ReadLine(prompt)
	}
	io.WriteString(p.out, prompt)
	b, err := term.ReadPassword(p.fd)
	io.WriteString(p.out, "\n")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

// SaveHistory is a no-op; there is nothing to recall lines into.
func (p *Plain) SaveHistory(string) error { return nil }

// Close is a no-op.
func (p *Plain) Close() error { return nil }
