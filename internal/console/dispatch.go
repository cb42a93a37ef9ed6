package console

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/acolita/gqlplus/internal/editor"
	"github.com/acolita/gqlplus/internal/logging"
	"github.com/acolita/gqlplus/internal/login"
	"github.com/acolita/gqlplus/internal/prompt"
	"github.com/acolita/gqlplus/internal/session"
)

// Handle processes one keyboard line and waits for the child's response.
func (c *Console) Handle(ctx context.Context, raw string) error {
	kind := c.sess.Kind()

	switch {
	case kind == prompt.KindUserName:
		c.creds.User = raw
		c.probe(ctx, login.Build(c.creds.User, c.creds.Password, c.sid))
		return c.forward(raw)
	case kind == prompt.KindPasswordLogin:
		c.creds.Password = raw
		c.probe(ctx, login.Build(c.creds.User, c.creds.Password, c.sid))
		return c.forward(raw)
	case kind.IsPassword():
		return c.forward(raw)
	case kind == prompt.KindValue || kind == prompt.KindRecover:
		c.remember(raw)
		return c.forward(raw)
	}

	c.remember(raw)
	trimmed := strings.TrimSpace(raw)

	if c.frontendCommand(trimmed, "rebuild", "r") {
		if c.index != nil {
			c.index.Invalidate()
		}
		return nil
	}
	if c.frontendCommand(trimmed, "history", "h") {
		return c.hist.Print(c.out)
	}

	if c.filter != nil && c.filter.HasBlocklist() {
		if ok, reason := c.filter.IsAllowed(trimmed); !ok {
			c.log.Warn("line refused", slog.String("line", logging.Truncate(trimmed, 80)), slog.String("reason", reason))
			fmt.Fprintf(c.errw, "gqlplus: %s\n", reason)
			return nil
		}
	}

	lower := strings.ToLower(trimmed)
	fields := strings.Fields(lower)

	if isSetCommand(fields, "sqlp") {
		return c.setSQLPrompt(raw)
	}

	connect := strings.HasPrefix(lower, "conn")
	if connect {
		c.sess.SetState(session.StateConnected)
		if c.creds.User == "" {
			c.connectLine(ctx, trimmed)
		}
	}
	if strings.HasPrefix(lower, "disc") {
		c.sess.SetState(session.StateDisconnected)
		if c.index != nil {
			c.index.Invalidate()
		}
	}

	switch {
	case strings.HasPrefix(lower, "pau"):
		return c.pause(raw, true)
	case lower == "quit" && c.sess.State() != session.StateStartup:
		c.log.Info("quit, terminating child")
		c.done = true
		return c.sess.Terminate()
	case c.sess.PauseMode() && strings.HasPrefix(lower, "select"):
		return c.pause(raw, false)
	case isSetCommand(fields, "pau"):
		c.sess.SetPauseMode(len(fields) > 2 && fields[2] == "on")
	case strings.HasPrefix(lower, "ed"):
		return c.edit(ctx, trimmed)
	case strings.HasPrefix(lower, "cl") && len(fields) > 1 && strings.HasPrefix(fields[1], "scr"):
		return c.clearScreen()
	case kind != prompt.KindNumeric:
		if cmd, ok := ShellCommand(trimmed); ok {
			return c.host(ctx, cmd)
		}
	}

	if err := c.sess.SendLine(raw); err != nil {
		return err
	}
	if editor.IsDefine(trimmed) {
		if cmd, ok := editor.ParseDefine(trimmed); ok {
			c.log.Info("editor redefined", slog.String("editor", cmd))
			c.editorLine = cmd
		}
	}

	if strings.HasPrefix(lower, "acc") {
		return c.accept(lower)
	}

	turn, err := c.await()
	if err != nil {
		return err
	}
	if connect && turn.Kind.IsIdle() && c.index != nil {
		c.index.Invalidate()
	}
	return nil
}

// forward sends raw and waits for the turn it starts.
func (c *Console) forward(raw string) error {
	if err := c.sess.SendLine(raw); err != nil {
		return err
	}
	_, err := c.await()
	return err
}

// await reads one turn, displaying it. A terminal message ends the session.
func (c *Console) await() (session.Turn, error) {
	turn, err := c.sess.AwaitTurn(false)
	if err != nil {
		return turn, err
	}
	if turn.Kind == prompt.KindTerminal {
		c.log.Info("terminal message from child")
		c.sess.SetState(session.StateShutdown)
		c.done = true
	}
	return turn, nil
}

// remember adds a line to the history.
func (c *Console) remember(line string) {
	if err := c.hist.Add(line); err != nil {
		c.log.Warn("history not saved", slog.String("error", err.Error()))
	}
}

// connectLine learns the logon from a "connect" command and probes for the
// prompt it will show. It is only consulted while no user name is known.
func (c *Console) connectLine(ctx context.Context, line string) {
	creds := login.FromConnectLine(line, c.sid)
	if creds.User == "" && creds.Connect == "" {
		return
	}
	c.creds = creds
	c.probe(ctx, creds.Connect)
}

// probe learns the prompt for a connect string. Failures keep the prompt
// already known.
func (c *Console) probe(ctx context.Context, connect string) {
	if c.prober == nil || connect == "" {
		return
	}
	p, ok, err := c.prober.Probe(ctx, connect)
	if err != nil {
		c.log.Warn("prompt probe failed", slog.String("error", err.Error()))
		return
	}
	if ok {
		c.sess.SetUserPrompt(p)
	}
}

// isSetCommand reports whether fields form "set <option> ..." with the
// option abbreviated to at least abbrev.
func isSetCommand(fields []string, abbrev string) bool {
	return len(fields) > 1 && strings.HasPrefix(fields[0], "set") && strings.HasPrefix(fields[1], abbrev)
}
