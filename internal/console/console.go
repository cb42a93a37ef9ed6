// Package console runs the interactive loop: it reads keyboard lines, decides
// which sub-protocol each line needs and keeps the session state in step with
// the child.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/acolita/gqlplus/internal/adapters/realclock"
	"github.com/acolita/gqlplus/internal/adapters/realfs"
	"github.com/acolita/gqlplus/internal/completion"
	"github.com/acolita/gqlplus/internal/config"
	"github.com/acolita/gqlplus/internal/editor"
	"github.com/acolita/gqlplus/internal/history"
	"github.com/acolita/gqlplus/internal/lineedit"
	"github.com/acolita/gqlplus/internal/login"
	"github.com/acolita/gqlplus/internal/ports"
	"github.com/acolita/gqlplus/internal/prompt"
	"github.com/acolita/gqlplus/internal/security"
	"github.com/acolita/gqlplus/internal/session"
)

// ErrEditor is returned when the external editor cannot be run.
var ErrEditor = errors.New("editor failure")

// TerminatedMessage is shown when the child can no longer be written to.
const TerminatedMessage = "sqlplus terminated - exiting... :("

// UnavailableWarning is shown once when completion is turned off.
const UnavailableWarning = "Warning: couldn't query or parse ALL_TABLES or ALL_VIEWS. Tablename completion disabled."

// Prober learns the prompt a logon will show.
type Prober interface {
	Probe(ctx context.Context, connect string) (string, bool, error)
}

// Options configures a Console. Session and Input are required.
type Options struct {
	Session *session.Session
	Engine  *prompt.Engine
	Input   lineedit.Editor
	History *history.History
	Index   *completion.Index
	Filter  *security.CommandFilter
	Prober  Prober

	EditorRunner editor.Runner
	LookPath     editor.LookPathFunc
	Shell        Shell

	Config  *config.Config
	Updates <-chan *config.Config

	// Credentials known from the command line.
	Credentials login.Credentials
	// SID completes connect strings that name no service.
	SID string
	// Progress shows elapsed time in the prompt (-p).
	Progress bool

	FS     ports.FileSystem
	Clock  ports.Clock
	Out    io.Writer
	Err    io.Writer
	Logger *slog.Logger
	// Exit ends the process; it defaults to os.Exit.
	Exit func(code int)
}

// Console is the session state machine.
type Console struct {
	sess   *session.Session
	engine *prompt.Engine
	input  lineedit.Editor
	hist   *history.History
	index  *completion.Index
	filter *security.CommandFilter
	prober Prober

	runner   editor.Runner
	lookPath editor.LookPathFunc
	shell    Shell
	updates  <-chan *config.Config

	creds        login.Credentials
	sid          string
	progressFlag bool
	progress     bool
	completionOn bool
	prefix       string
	editorLine   string
	scratchFile  string
	extension    string

	fs    ports.FileSystem
	clock ports.Clock
	out   io.Writer
	errw  io.Writer
	log   *slog.Logger
	exit  func(int)

	lastSubmit time.Time
	editing    atomic.Bool
	done       bool
}

// New creates a console around a started session.
func New(opts Options) *Console {
	c := &Console{
		sess:         opts.Session,
		engine:       opts.Engine,
		input:        opts.Input,
		hist:         opts.History,
		index:        opts.Index,
		filter:       opts.Filter,
		prober:       opts.Prober,
		runner:       opts.EditorRunner,
		lookPath:     opts.LookPath,
		shell:        opts.Shell,
		updates:      opts.Updates,
		creds:        opts.Credentials,
		sid:          opts.SID,
		progressFlag: opts.Progress,
		fs:           opts.FS,
		clock:        opts.Clock,
		out:          opts.Out,
		errw:         opts.Err,
		log:          opts.Logger,
		exit:         opts.Exit,
	}
	if c.fs == nil {
		c.fs = realfs.New()
	}
	if c.clock == nil {
		c.clock = realclock.New()
	}
	if c.out == nil {
		c.out = c.sess.Output()
	}
	if c.errw == nil {
		c.errw = os.Stderr
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.exit == nil {
		c.exit = os.Exit
	}
	if c.hist == nil {
		c.hist = history.New(history.DefaultLimit)
	}
	if c.runner == nil {
		c.runner = &editor.ExecRunner{FS: c.fs}
	}
	if c.shell == nil {
		c.shell = &ExecShell{FS: c.fs}
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	c.apply(cfg)
	c.editorLine = editor.Discover(cfg.Editor.Command, c.fs)
	c.lastSubmit = c.clock.Now()
	return c
}

// apply takes over the settings that may change while the session runs.
func (c *Console) apply(cfg *config.Config) {
	c.progress = c.progressFlag || cfg.Completion.Progress
	c.completionOn = cfg.Completion.Enabled
	c.prefix = cfg.CommandPrefix
	if c.prefix == "" {
		c.prefix = config.DefaultCommandPrefix
	}
	c.scratchFile = cfg.Editor.ScratchFile
	c.extension = cfg.Editor.Extension
	if cfg.Editor.Command != "" {
		c.editorLine = cfg.Editor.Command
	}

	if c.filter != nil {
		if err := c.filter.Update(cfg.Security.CommandBlocklist); err != nil {
			c.log.Warn("blocklist not updated", slog.String("error", err.Error()))
		}
	}
	if c.engine != nil {
		c.engine.ClearCustomPatterns()
		for _, p := range cfg.PromptDetection.CustomPatterns {
			if err := c.engine.AddPatternFromConfig(p.Name, p.Regex, p.Kind); err != nil {
				c.log.Warn("custom prompt pattern skipped", slog.String("error", err.Error()))
			}
		}
	}
}

// applyUpdates applies a reloaded configuration, if one is waiting.
func (c *Console) applyUpdates() {
	if c.updates == nil {
		return
	}
	select {
	case cfg, ok := <-c.updates:
		if !ok {
			c.updates = nil
			return
		}
		c.log.Info("configuration reloaded")
		c.apply(cfg)
	default:
	}
}

// Run shows the child's banner and then serves keyboard lines until the
// session ends. A nil error is a clean exit.
func (c *Console) Run(ctx context.Context) error {
	turn, err := c.sess.AwaitTurn(false)
	if err != nil {
		return c.finish(err)
	}
	if turn.Kind == prompt.KindTerminal {
		c.sess.SetState(session.StateShutdown)
		return nil
	}

	for !c.done {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.applyUpdates()

		if err := c.ensureCompletion(); err != nil {
			return c.finish(err)
		}

		line, err := c.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.log.Info("input closed, terminating child")
				c.sess.Terminate()
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		if err := c.Handle(ctx, line); err != nil {
			return c.finish(err)
		}
	}
	return nil
}

// finish maps a session error to the loop's result. The child exiting or
// announcing its termination is a normal end of the session.
func (c *Console) finish(err error) error {
	switch {
	case errors.Is(err, session.ErrChildExited), errors.Is(err, session.ErrTerminated):
		c.done = true
		c.sess.SetState(session.StateShutdown)
		return nil
	case errors.Is(err, session.ErrBrokenChannel):
		fmt.Fprintln(c.errw, TerminatedMessage)
	}
	return err
}

// readLine reads the next line under the active prompt. A Ctrl-C at the
// prompt discards the line and asks again.
func (c *Console) readLine() (string, error) {
	text := c.sess.PromptText()
	if c.progress {
		text = fmt.Sprintf("[%.2f] %s", c.clock.Since(c.lastSubmit).Seconds(), text)
	}
	password := c.sess.Kind().IsPassword()

	for {
		var (
			line string
			err  error
		)
		if password {
			line, err = c.input.ReadPassword(text)
		} else {
			line, err = c.input.ReadLine(text)
		}
		if errors.Is(err, lineedit.ErrInterrupt) {
			continue
		}
		c.lastSubmit = c.clock.Now()
		return line, err
	}
}

// ensureCompletion rebuilds a stale index while the child is idle and
// connected.
func (c *Console) ensureCompletion() error {
	if !c.completionOn || c.index == nil || c.index.Built() || c.index.Disabled() {
		return nil
	}
	if c.sess.State() == session.StateDisconnected || !c.sess.Kind().IsIdle() {
		return nil
	}

	if c.progress {
		if c.index.Columns() {
			fmt.Fprintln(c.out, "gqlplus: scanning tables and columns...")
		} else {
			fmt.Fprintln(c.out, "gqlplus: scanning tables...")
		}
	}

	start := c.clock.Now()
	err := c.index.Rebuild(c.sess)
	switch {
	case err == nil:
		c.log.Info("completion index built",
			slog.Int("entries", len(c.index.Entries())),
			slog.Duration("elapsed", c.clock.Since(start)),
		)
		return nil
	case errors.Is(err, completion.ErrUnavailable):
		fmt.Fprintln(c.errw, UnavailableWarning)
		c.log.Warn("completion disabled", slog.String("error", err.Error()))
		return nil
	case errors.Is(err, session.ErrBrokenChannel), errors.Is(err, session.ErrChildExited),
		errors.Is(err, session.ErrTerminated):
		return err
	}
	c.log.Warn("completion index not built", slog.String("error", err.Error()))
	return nil
}

// CompletionEnabled reports whether the completer may offer names. It is
// meant for completion.Completer.Enabled.
func (c *Console) CompletionEnabled() bool {
	return c.completionOn && c.sess.State() != session.StateDisconnected
}

// Editing reports whether the external editor is running.
func (c *Console) Editing() bool { return c.editing.Load() }

// idlePrompt returns the prompt the child shows when idle.
func (c *Console) idlePrompt() (prompt.Kind, string) {
	if p := c.sess.UserPrompt(); p != "" {
		return prompt.KindUserDefined, p
	}
	return prompt.KindDefault, prompt.DefaultPrompt
}

// frontendCommand reports whether line is one of the front-end's own
// commands, such as "--!r".
func (c *Console) frontendCommand(line, name, short string) bool {
	return strings.EqualFold(line, c.prefix+name) || strings.EqualFold(line, c.prefix+short)
}
