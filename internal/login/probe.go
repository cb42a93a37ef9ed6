package login

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// DefaultProbeTimeout bounds a prompt probe.
const DefaultProbeTimeout = 10 * time.Second

// Prober asks a separate, silent sqlplus for the prompt a session with the
// same logon would show.
type Prober struct {
	Path    string
	Env     []string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Probe returns the prompt defined by login.sql or glogin.sql for the given
// connect string. ok is false when no prompt could be learned; the caller
// keeps the prompt it has.
func (p *Prober) Probe(ctx context.Context, connect string) (prompt string, ok bool, err error) {
	if connect == "" {
		return "", false, nil
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// The logon is fed on stdin so the password never shows in ps.
	cmd := exec.CommandContext(ctx, p.Path, "-s", "/nolog")
	cmd.Env = p.Env
	cmd.Stdin = strings.NewReader("connect " + connect + "\nshow sqlprompt\nexit\n")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return "", false, fmt.Errorf("probe sql prompt: %w", err)
	}

	prompt, ok = ParseSQLPrompt(out.String())
	if p.Logger != nil {
		p.Logger.Debug("probed sql prompt", slog.Bool("found", ok), slog.String("prompt", prompt))
	}
	return prompt, ok, nil
}

// ParseSQLPrompt extracts X from the `sqlprompt "X"` line printed by
// "show sqlprompt".
func ParseSQLPrompt(output string) (string, bool) {
	i := strings.Index(strings.ToLower(output), "sqlprompt")
	if i < 0 {
		return "", false
	}
	rest := output[i:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	open := strings.IndexByte(rest, '"')
	if open < 0 {
		return "", false
	}
	rest = rest[open+1:]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return "", false
	}
	prompt := rest[:end]
	return prompt, prompt != ""
}
