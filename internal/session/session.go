// Package session drives one database shell child: sending lines, reading
// turns until the child waits for input, and reading raw replies for the
// sub-protocols that bypass prompt recognition.
package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/acolita/gqlplus/internal/adapters/realclock"
	"github.com/acolita/gqlplus/internal/buffer"
	"github.com/acolita/gqlplus/internal/ports"
	"github.com/acolita/gqlplus/internal/prompt"
)

// ConnState is the connection state as far as the front-end can tell.
type ConnState int

const (
	StateStartup ConnState = iota
	StateConnected
	StateDisconnected
	StateShutdown
)

func (s ConnState) String() string {
	switch s {
	case StateStartup:
		return "startup"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateShutdown:
		return "shutdown"
	}
	return "unknown"
}

var (
	// ErrBrokenChannel is returned when the child can no longer be written to.
	ErrBrokenChannel = errors.New("broken channel to child")

	// ErrChildExited is returned when the child's output reaches end of file.
	ErrChildExited = errors.New("child exited")

	// ErrTerminated is returned by Query when the child answers with a
	// terminal message. No further commands should be sent.
	ErrTerminated = errors.New("child announced termination")
)

// Turn is the child's response to one line of input.
type Turn struct {
	Prompt string
	Kind   prompt.Kind
	// Output holds the displayable output when the turn was captured.
	Output string
}

// Options configures a Session. Zero values select defaults.
type Options struct {
	// ID names the session in logs and recordings; a random one is made
	// when empty.
	ID       string
	Output   io.Writer
	Engine   *prompt.Engine
	Recorder Recorder
	Logger   *slog.Logger
	Clock    ports.Clock

	ReadSize     int
	PollInterval time.Duration
	ReplyQuiet   time.Duration
	DrainDelay   time.Duration
}

// Session is the front-end's view of a running child.
type Session struct {
	ID string

	child  Child
	engine *prompt.Engine
	out    io.Writer
	rec    Recorder
	log    *slog.Logger
	clock  ports.Clock

	readSize     int
	pollInterval time.Duration
	replyQuiet   time.Duration
	drainDelay   time.Duration

	// state is also written by Terminate from the signal relay.
	state       atomic.Int32
	kind        prompt.Kind
	promptText  string
	pauseMode   bool
	terminating atomic.Bool
}

// New wraps a started child.
func New(child Child, opts Options) *Session {
	s := &Session{
		ID:           opts.ID,
		child:        child,
		engine:       opts.Engine,
		out:          opts.Output,
		rec:          opts.Recorder,
		log:          opts.Logger,
		clock:        opts.Clock,
		readSize:     opts.ReadSize,
		pollInterval: opts.PollInterval,
		replyQuiet:   opts.ReplyQuiet,
		drainDelay:   opts.DrainDelay,
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.engine == nil {
		s.engine = prompt.NewEngine()
	}
	if s.out == nil {
		s.out = os.Stdout
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.clock == nil {
		s.clock = realclock.New()
	}
	if s.readSize <= 0 {
		s.readSize = DefaultReadSize
	}
	if s.pollInterval <= 0 {
		s.pollInterval = DefaultPollInterval
	}
	if s.replyQuiet <= 0 {
		s.replyQuiet = DefaultReplyQuiet
	}
	if s.drainDelay <= 0 {
		s.drainDelay = DefaultDrainDelay
	}
	s.log = s.log.With(slog.String("session_id", s.ID))
	return s
}

// State returns the connection state.
func (s *Session) State() ConnState { return ConnState(s.state.Load()) }

// SetState changes the connection state. Leaving startup stops treating
// "Disconnected from Oracle" as a terminal message.
func (s *Session) SetState(state ConnState) {
	if prev := ConnState(s.state.Swap(int32(state))); prev != state {
		s.log.Debug("state change",
			slog.String("from", prev.String()),
			slog.String("to", state.String()),
		)
	}
	if state != StateStartup {
		s.engine.SetStartup(false)
	}
}

// Kind returns the kind of the active prompt.
func (s *Session) Kind() prompt.Kind { return s.kind }

// PromptText returns the text of the active prompt.
func (s *Session) PromptText() string { return s.promptText }

// SetActivePrompt overrides the active prompt, for sub-protocols that read
// replies without prompt recognition.
func (s *Session) SetActivePrompt(kind prompt.Kind, text string) {
	s.kind = kind
	s.promptText = text
}

// UserPrompt returns the prompt defined with "set sqlprompt".
func (s *Session) UserPrompt() string { return s.engine.UserPrompt() }

// SetUserPrompt records a prompt defined with "set sqlprompt".
func (s *Session) SetUserPrompt(p string) { s.engine.SetUserPrompt(p) }

// PauseMode reports whether "set pause on" is in effect.
func (s *Session) PauseMode() bool { return s.pauseMode }

// SetPauseMode records "set pause on|off".
func (s *Session) SetPauseMode(on bool) { s.pauseMode = on }

// Terminating reports whether Terminate has been called.
func (s *Session) Terminating() bool { return s.terminating.Load() }

// Output returns the writer turn output is displayed on.
func (s *Session) Output() io.Writer { return s.out }

// SendLine writes text followed by a newline. Any failure means the channel
// is unusable. Lines sent at a password prompt are recorded masked.
func (s *Session) SendLine(text string) error {
	return s.send(text, s.kind.IsPassword())
}

// SendSecret is SendLine for input that must be masked whatever the prompt,
// such as an "accept ... hide" answer.
func (s *Session) SendSecret(text string) error {
	return s.send(text, true)
}

func (s *Session) send(text string, masked bool) error {
	if _, err := s.child.WriteString(text + "\n"); err != nil {
		s.log.Error("write to child failed", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", ErrBrokenChannel, err)
	}

	if masked {
		s.log.Debug("sent line", slog.Int("length", len(text)), slog.Bool("masked", true))
		s.recordInput(text, true)
	} else {
		s.log.Debug("sent line", slog.String("line", text))
		s.recordInput(text, false)
	}
	return nil
}

// AwaitTurn reads until the child waits for input. Output is written to the
// session output, or collected in Turn.Output when capture is set. A terminal
// message completes the turn at once.
func (s *Session) AwaitTurn(capture bool) (Turn, error) {
	var captured *buffer.Buffer
	if capture {
		captured = buffer.New()
	}

	buf := make([]byte, s.readSize)
	for {
		n, err := s.child.Read(buf)
		if n > 0 {
			s.recordOutput(buf[:n])
			res := s.engine.Feed(buf[:n])
			s.emit(res.Display, captured)
			if res.Complete {
				s.kind = res.Kind
				s.promptText = res.Prompt
				s.log.Debug("turn complete",
					slog.String("kind", res.Kind.String()),
					slog.String("pattern", res.Pattern),
				)
				turn := Turn{Prompt: res.Prompt, Kind: res.Kind}
				if captured != nil {
					turn.Output = captured.String()
				}
				return turn, nil
			}
		}
		if err != nil {
			if isExit(err) {
				s.emit(s.engine.Take(), captured)
				s.log.Info("child output closed", slog.String("error", err.Error()))
				return Turn{}, ErrChildExited
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			s.log.Warn("read from child failed, retrying", slog.String("error", err.Error()))
			s.clock.Sleep(s.pollInterval)
		}
	}
}

// Query sends cmd and returns its captured output. A terminal message is
// shown rather than captured.
func (s *Session) Query(cmd string) (string, error) {
	if err := s.SendLine(cmd); err != nil {
		return "", err
	}
	turn, err := s.AwaitTurn(true)
	if err != nil {
		return "", err
	}
	if turn.Kind == prompt.KindTerminal {
		s.emit([]byte(turn.Output), nil)
		s.SetState(StateShutdown)
		return turn.Output, ErrTerminated
	}
	return turn.Output, nil
}

// Interrupt forwards SIGINT to the child.
func (s *Session) Interrupt() error {
	return s.child.Interrupt()
}

// Terminate asks the child to exit. Only the first call signals.
func (s *Session) Terminate() error {
	if !s.terminating.CompareAndSwap(false, true) {
		return nil
	}
	s.SetState(StateShutdown)
	return s.child.Terminate()
}

// Close releases the child.
func (s *Session) Close() error {
	return s.child.Close()
}

func (s *Session) emit(p []byte, captured *buffer.Buffer) {
	if len(p) == 0 {
		return
	}
	if captured != nil {
		captured.Append(p)
		return
	}
	if _, err := s.out.Write(p); err != nil {
		s.log.Warn("write output failed", slog.String("error", err.Error()))
	}
}

func (s *Session) recordOutput(p []byte) {
	if s.rec == nil {
		return
	}
	if err := s.rec.RecordOutput(string(p)); err != nil {
		s.log.Warn("record output failed", slog.String("error", err.Error()))
	}
}

func (s *Session) recordInput(text string, masked bool) {
	if s.rec == nil {
		return
	}
	var err error
	if masked {
		err = s.rec.RecordMaskedInput(len(text))
	} else {
		err = s.rec.RecordInput(text + "\n")
	}
	if err != nil {
		s.log.Warn("record input failed", slog.String("error", err.Error()))
	}
}

// isExit reports whether err means the child's output is gone for good.
func isExit(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}
