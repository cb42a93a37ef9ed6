package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/acolita/gqlplus/internal/completion"
	"github.com/acolita/gqlplus/internal/config"
	"github.com/acolita/gqlplus/internal/editor"
	"github.com/acolita/gqlplus/internal/history"
	"github.com/acolita/gqlplus/internal/lineedit"
	"github.com/acolita/gqlplus/internal/login"
	"github.com/acolita/gqlplus/internal/prompt"
	"github.com/acolita/gqlplus/internal/security"
	"github.com/acolita/gqlplus/internal/session"
	"github.com/acolita/gqlplus/internal/testing/fakes/fakechild"
	"github.com/acolita/gqlplus/internal/testing/fakes/fakeclock"
	"github.com/acolita/gqlplus/internal/testing/fakes/fakefs"
)

// ctrlC scripts a Ctrl-C at the prompt.
const ctrlC = "\x03"

// fakeInput replays scripted keyboard lines and records the prompts shown.
type fakeInput struct {
	lines     []string
	prompts   []string
	passwords []string
	saved     []string
}

func (f *fakeInput) next(p string) (string, error) {
	f.prompts = append(f.prompts, p)
	if len(f.lines) == 0 {
		return "", io.EOF
	}
	line := f.lines[0]
	f.lines = f.lines[1:]
	if line == ctrlC {
		return "", lineedit.ErrInterrupt
	}
	return line, nil
}

func (f *fakeInput) ReadLine(p string) (string, error) { return f.next(p) }

func (f *fakeInput) ReadPassword(p string) (string, error) {
	f.passwords = append(f.passwords, p)
	return f.next(p)
}

func (f *fakeInput) SaveHistory(line string) error {
	f.saved = append(f.saved, line)
	return nil
}

func (f *fakeInput) Close() error { return nil }

type fakeRunner struct {
	files   []string
	content []string
	editing []bool
	con     *Console
	fs      *fakefs.FS
	rewrite string
	err     error
}

func (r *fakeRunner) Run(_ context.Context, cmd editor.Command, file string) error {
	r.files = append(r.files, file)
	if r.con != nil {
		r.editing = append(r.editing, r.con.Editing())
	}
	if data, err := r.fs.ReadFile(file); err == nil {
		r.content = append(r.content, string(data))
	}
	if r.rewrite != "" {
		r.fs.WriteFile(file, []byte(r.rewrite), 0644)
	}
	return r.err
}

type fakeShell struct {
	commands []string
}

func (s *fakeShell) Run(_ context.Context, command string) error {
	s.commands = append(s.commands, command)
	return nil
}

type fakeProber struct {
	prompts map[string]string
	asked   []string
}

func (p *fakeProber) Probe(_ context.Context, connect string) (string, bool, error) {
	p.asked = append(p.asked, connect)
	prompt, ok := p.prompts[connect]
	return prompt, ok, nil
}

type harness struct {
	child  *fakechild.Child
	sess   *session.Session
	input  *fakeInput
	fs     *fakefs.FS
	runner *fakeRunner
	shell  *fakeShell
	prober *fakeProber
	index  *completion.Index
	hist   *history.History
	con    *Console
	out    bytes.Buffer
	errw   bytes.Buffer
	exits  []int
}

// newHarness builds a console over a fake child that answers each line with
// respond. Completion is off unless cfg turns it on.
func newHarness(t *testing.T, banner string, respond func(string) []string, cfg *config.Config, lines ...string) *harness {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
		cfg.Completion.Enabled = false
	}
	if respond == nil {
		respond = func(string) []string { return []string{prompt.DefaultPrompt} }
	}

	h := &harness{
		child:  fakechild.New().AddResponse(banner).OnLine(respond),
		input:  &fakeInput{lines: lines},
		fs:     fakefs.New(),
		shell:  &fakeShell{},
		prober: &fakeProber{prompts: map[string]string{}},
		index:  completion.NewIndex(cfg.Completion.Columns),
		hist:   history.New(50),
	}
	clock := fakeclock.New(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	engine := prompt.NewEngine()
	h.sess = session.New(h.child, session.Options{Output: &h.out, Engine: engine, Clock: clock})
	h.runner = &fakeRunner{fs: h.fs}

	filter, err := security.NewCommandFilter(nil)
	if err != nil {
		t.Fatal(err)
	}
	h.con = New(Options{
		Session:      h.sess,
		Engine:       engine,
		Input:        h.input,
		History:      h.hist,
		Index:        h.index,
		Filter:       filter,
		Prober:       h.prober,
		EditorRunner: h.runner,
		LookPath:     func(name string) (string, error) { return "/usr/bin/" + name, nil },
		Shell:        h.shell,
		Config:       cfg,
		SID:          "orcl",
		FS:           h.fs,
		Clock:        clock,
		Out:          &h.out,
		Err:          &h.errw,
		Exit:         func(code int) { h.exits = append(h.exits, code) },
	})
	h.runner.con = h.con
	return h
}

func (h *harness) run(t *testing.T) {
	t.Helper()
	if err := h.con.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

// --- Main loop ---

func TestRun_Passthrough(t *testing.T) {
	respond := func(line string) []string {
		if line == "select 1 from dual;" {
			return []string{"\n         1\n----------\n         1\n\n", "SQL> "}
		}
		return nil
	}
	h := newHarness(t, "\nSQL*Plus: Release 19.0.0.0.0\n\nConnected to:\nOracle Database 19c\n\nSQL> ", respond, nil,
		"select 1 from dual;")
	h.run(t)

	if !strings.Contains(h.out.String(), "Connected to:") || !strings.Contains(h.out.String(), "----------") {
		t.Errorf("output = %q", h.out.String())
	}
	if strings.Contains(h.out.String(), "SQL> ") {
		t.Error("prompt written to output; the line editor shows it")
	}
	if diff := cmp.Diff([]string{"SQL> ", "SQL> "}, h.input.prompts); diff != "" {
		t.Errorf("prompts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"select 1 from dual;"}, h.child.Lines()); diff != "" {
		t.Errorf("lines sent mismatch (-want +got):\n%s", diff)
	}
	if !h.child.WasTerminated() {
		t.Error("end of input should terminate the child")
	}
	if diff := cmp.Diff([]string{"select 1 from dual;"}, h.hist.Lines()); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_TerminalBanner(t *testing.T) {
	banner := "ERROR:\nORA-01017: invalid username/password; logon denied\n\n\nSP2-0157: unable to CONNECT to ORACLE after 3 attempts, exiting SQL*Plus\n"
	h := newHarness(t, banner, nil, nil, "select 1 from dual;")
	h.run(t)

	if len(h.input.prompts) != 0 {
		t.Errorf("keyboard read after terminal message: %q", h.input.prompts)
	}
	if !strings.Contains(h.out.String(), "ORA-01017") {
		t.Errorf("output = %q", h.out.String())
	}
	if h.sess.State() != session.StateShutdown {
		t.Errorf("state = %s", h.sess.State())
	}
}

func TestRun_ExitIsClean(t *testing.T) {
	respond := func(line string) []string {
		if line == "exit" {
			return []string{"Disconnected from Oracle Database 19c\n"}
		}
		return nil
	}
	h := newHarness(t, "SQL> ", respond, nil, "exit", "never read")
	h.sess.SetState(session.StateConnected)
	h.run(t)

	if !strings.Contains(h.out.String(), "Disconnected from Oracle") {
		t.Errorf("output = %q", h.out.String())
	}
	if len(h.input.lines) != 1 {
		t.Error("loop kept reading after the child exited")
	}
}

func TestRun_BrokenChannel(t *testing.T) {
	h := newHarness(t, "SQL> ", nil, nil, "select 1 from dual;")
	h.child.SetBroken(true)

	err := h.con.Run(context.Background())
	if !errors.Is(err, session.ErrBrokenChannel) {
		t.Fatalf("Run() = %v, want ErrBrokenChannel", err)
	}
	if !strings.Contains(h.errw.String(), TerminatedMessage) {
		t.Errorf("stderr = %q", h.errw.String())
	}
}

func TestRun_CtrlCReadsAgain(t *testing.T) {
	h := newHarness(t, "SQL> ", nil, nil, ctrlC, "show user")
	h.run(t)

	if diff := cmp.Diff([]string{"show user"}, h.child.Lines()); diff != "" {
		t.Errorf("lines sent mismatch (-want +got):\n%s", diff)
	}
	if len(h.input.prompts) != 3 {
		t.Errorf("prompts = %q", h.input.prompts)
	}
}

func TestRun_ProgressPromptFromUpdate(t *testing.T) {
	h := newHarness(t, "SQL> ", nil, nil)
	updated := config.DefaultConfig()
	updated.Completion.Enabled = false
	updated.Completion.Progress = true
	updates := make(chan *config.Config, 1)
	updates <- updated
	h.con.updates = updates

	h.run(t)

	if diff := cmp.Diff([]string{"[0.00] SQL> "}, h.input.prompts); diff != "" {
		t.Errorf("prompts mismatch (-want +got):\n%s", diff)
	}
}

// --- Dispatch ---

func TestHandle_Quit(t *testing.T) {
	h := newHarness(t, "SQL> ", nil, nil, "QUIT ", "never read")
	h.sess.SetState(session.StateConnected)
	h.run(t)

	if len(h.child.Lines()) != 0 {
		t.Errorf("quit was forwarded: %q", h.child.Lines())
	}
	if !h.child.WasTerminated() || h.sess.State() != session.StateShutdown {
		t.Error("quit should terminate the child")
	}
}

func TestHandle_QuitDuringStartupIsForwarded(t *testing.T) {
	h := newHarness(t, "SQL> ", nil, nil, "quit")
	h.run(t)

	if diff := cmp.Diff([]string{"quit"}, h.child.Lines()); diff != "" {
		t.Errorf("lines sent mismatch (-want +got):\n%s", diff)
	}
}

func TestHandle_LoginPrompts(t *testing.T) {
	respond := func(line string) []string {
		switch line {
		case "scott":
			return []string{"Enter password: "}
		case "tiger":
			return []string{"\nConnected.\n", "scott> "}
		}
		return nil
	}
	h := newHarness(t, "Enter user-name: ", respond, nil, "scott", "tiger")
	h.prober.prompts["scott/tiger@orcl"] = "scott> "
	h.run(t)

	if diff := cmp.Diff([]string{"scott/tiger@orcl"}, h.prober.asked); diff != "" {
		t.Errorf("probes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Enter password: "}, h.input.passwords); diff != "" {
		t.Errorf("password reads mismatch (-want +got):\n%s", diff)
	}
	if h.sess.Kind() != prompt.KindUserDefined || h.sess.PromptText() != "scott> " {
		t.Errorf("prompt = %s %q", h.sess.Kind(), h.sess.PromptText())
	}
	if h.hist.Len() != 0 {
		t.Errorf("login answers in history: %q", h.hist.Lines())
	}
}

func TestHandle_PasswordPromptNotInterpreted(t *testing.T) {
	respond := func(line string) []string {
		if line == "edit123" {
			return []string{"Password changed\n", "SQL> "}
		}
		return []string{"New password: "}
	}
	h := newHarness(t, "SQL> ", respond, nil, "password", "edit123")
	h.sess.SetState(session.StateConnected)
	h.run(t)

	if diff := cmp.Diff([]string{"password", "edit123"}, h.child.Lines()); diff != "" {
		t.Errorf("lines sent mismatch (-want +got):\n%s", diff)
	}
	if len(h.runner.files) != 0 {
		t.Error("password answer started the editor")
	}
	if diff := cmp.Diff([]string{"password"}, h.hist.Lines()); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestHandle_ConnectInvalidatesIndexAndProbes(t *testing.T) {
	respond := func(line string) []string {
		if strings.HasPrefix(line, "conn") {
			return []string{"Connected.\n", "hr> "}
		}
		return nil
	}
	h := newHarness(t, "SQL> ", respond, nil, "conn hr/hr@pdb1")
	h.sess.SetState(session.StateDisconnected)
	h.index.SetEntries([]completion.Entry{{Name: "emp"}})
	h.prober.prompts["hr/hr@pdb1"] = "hr> "
	h.run(t)

	if h.sess.State() != session.StateShutdown && h.sess.State() != session.StateConnected {
		t.Errorf("state = %s", h.sess.State())
	}
	if h.index.Built() {
		t.Error("connect should invalidate the index")
	}
	if h.sess.UserPrompt() != "hr> " || h.sess.Kind() != prompt.KindUserDefined {
		t.Errorf("user prompt = %q kind = %s", h.sess.UserPrompt(), h.sess.Kind())
	}
}

func TestHandle_ConnectKeepsKnownUser(t *testing.T) {
	respond := func(line string) []string {
		if strings.HasPrefix(line, "conn") {
			return []string{"Connected.\n", "SQL> "}
		}
		return nil
	}
	h := newHarness(t, "SQL> ", respond, nil, "connect hr/hr@pdb1")
	h.sess.SetState(session.StateConnected)
	h.con.creds = login.Credentials{User: "scott", Password: "tiger", Connect: "scott/tiger@orcl"}
	h.run(t)

	want := login.Credentials{User: "scott", Password: "tiger", Connect: "scott/tiger@orcl"}
	if diff := cmp.Diff(want, h.con.creds); diff != "" {
		t.Errorf("credentials changed (-want +got):\n%s", diff)
	}
	if len(h.prober.asked) != 0 {
		t.Errorf("prober asked = %v, want none", h.prober.asked)
	}
	if got := h.child.Lines(); len(got) == 0 || got[0] != "connect hr/hr@pdb1" {
		t.Errorf("child lines = %q", got)
	}
}

func TestHandle_DisconnectInvalidatesIndex(t *testing.T) {
	h := newHarness(t, "SQL> ", nil, nil, "disconnect")
	h.sess.SetState(session.StateConnected)
	h.index.SetEntries([]completion.Entry{{Name: "emp"}})
	h.run(t)

	if h.index.Built() {
		t.Error("disconnect should invalidate the index")
	}
}

func TestHandle_Disconnect(t *testing.T) {
	h := newHarness(t, "SQL> ", nil, nil, "disconnect")
	h.sess.SetState(session.StateConnected)
	var states []session.ConnState
	h.input.lines = append(h.input.lines, "")
	h.con.input = &stateReader{fakeInput: h.input, sess: h.sess, states: &states}
	h.run(t)

	if len(states) < 2 || states[1] != session.StateDisconnected {
		t.Errorf("states at prompts = %v", states)
	}
}

// stateReader records the session state each time a line is read.
type stateReader struct {
	*fakeInput
	sess   *session.Session
	states *[]session.ConnState
}

func (p *stateReader) ReadLine(text string) (string, error) {
	*p.states = append(*p.states, p.sess.State())
	return p.fakeInput.ReadLine(text)
}

func TestHandle_FrontendCommands(t *testing.T) {
	h := newHarness(t, "SQL> ", nil, nil, "select 1 from dual;", "--!R", "--!history")
	h.index.SetEntries([]completion.Entry{{Name: "emp"}})
	h.run(t)

	if diff := cmp.Diff([]string{"select 1 from dual;"}, h.child.Lines()); diff != "" {
		t.Errorf("lines sent mismatch (-want +got):\n%s", diff)
	}
	if h.index.Built() {
		t.Error("--!r should invalidate the index")
	}
	want := "\nselect 1 from dual;\n--!R\n--!history\nEnd of History\n"
	if !strings.HasSuffix(h.out.String(), want) {
		t.Errorf("output = %q, want suffix %q", h.out.String(), want)
	}
}

func TestHandle_Blocklist(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Completion.Enabled = false
	cfg.Security.CommandBlocklist = []string{`(?i)^drop\s+table`}
	h := newHarness(t, "SQL> ", nil, cfg, "DROP TABLE emp;", "select 1 from dual;")
	h.run(t)

	if diff := cmp.Diff([]string{"select 1 from dual;"}, h.child.Lines()); diff != "" {
		t.Errorf("lines sent mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(h.errw.String(), "command blocked by pattern") {
		t.Errorf("stderr = %q", h.errw.String())
	}
}

func TestHandle_BlocklistClearedByReload(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Completion.Enabled = false
	cfg.Security.CommandBlocklist = []string{`(?i)^drop\s+table`}
	h := newHarness(t, "SQL> ", nil, cfg, "DROP TABLE emp;")

	reloaded := config.DefaultConfig()
	reloaded.Completion.Enabled = false
	h.con.apply(reloaded)
	h.run(t)

	if diff := cmp.Diff([]string{"DROP TABLE emp;"}, h.child.Lines()); diff != "" {
		t.Errorf("lines sent mismatch (-want +got):\n%s", diff)
	}
	if h.errw.Len() != 0 {
		t.Errorf("stderr = %q", h.errw.String())
	}
}

func TestHandle_ClearScreen(t *testing.T) {
	h := newHarness(t, "SQL> ", nil, nil, "clear scr")
	h.run(t)

	if len(h.child.Lines()) != 0 {
		t.Errorf("clear screen was forwarded: %q", h.child.Lines())
	}
	if !strings.Contains(h.out.String(), ClearSequence) {
		t.Errorf("output = %q", h.out.String())
	}
}

func TestHandle_Host(t *testing.T) {
	h := newHarness(t, "SQL> ", nil, nil, "!ls -l", "host", "HO date")
	h.run(t)

	if len(h.child.Lines()) != 0 {
		t.Errorf("host command was forwarded: %q", h.child.Lines())
	}
	if diff := cmp.Diff([]string{"ls -l", "", "date"}, h.shell.commands); diff != "" {
		t.Errorf("shell commands mismatch (-want +got):\n%s", diff)
	}
}

func TestHandle_HostAtNumericPromptIsForwarded(t *testing.T) {
	respond := func(line string) []string {
		switch line {
		case "select *":
			return []string{"  2  "}
		case "!ls":
			return []string{"  3  "}
		}
		return nil
	}
	h := newHarness(t, "SQL> ", respond, nil, "select *", "!ls")
	h.run(t)

	if len(h.shell.commands) != 0 {
		t.Errorf("shell ran at a numeric prompt: %q", h.shell.commands)
	}
	if diff := cmp.Diff([]string{"select *", "!ls"}, h.child.Lines()); diff != "" {
		t.Errorf("lines sent mismatch (-want +got):\n%s", diff)
	}
	if h.sess.Kind() != prompt.KindNumeric {
		t.Errorf("kind = %s", h.sess.Kind())
	}
}

func TestShellCommand(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"!", "", true},
		{"! ls", "ls", true},
		{"ho", "", true},
		{"host   ls -l", "ls -l", true},
		{"HOS pwd", "pwd", true},
		{"hostname", "", false},
		{"select 1", "", false},
	}
	for _, tt := range tests {
		got, ok := ShellCommand(tt.line)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ShellCommand(%q) = %q, %v; want %q, %v", tt.line, got, ok, tt.want, tt.ok)
		}
	}
}

func TestHandle_DefineEditor(t *testing.T) {
	h := newHarness(t, "SQL> ", nil, nil, `define _editor = "emacs -nw"`)
	h.run(t)

	if h.con.editorLine != "emacs -nw" {
		t.Errorf("editor = %q", h.con.editorLine)
	}
	if len(h.child.Lines()) != 1 {
		t.Errorf("define was not forwarded: %q", h.child.Lines())
	}
}

// --- Sub-protocols ---

func TestSetSQLPrompt(t *testing.T) {
	respond := func(line string) []string {
		switch line {
		case "set sqlprompt 'dev> '":
			return []string{"dev> "}
		case "select 1 from dual;":
			return []string{"\n         1\n\n", "dev> "}
		}
		return nil
	}
	h := newHarness(t, "SQL> ", respond, nil, "set sqlprompt 'dev> '", "select 1 from dual;")
	h.run(t)

	if diff := cmp.Diff([]string{"SQL> ", "dev> ", "dev> "}, h.input.prompts); diff != "" {
		t.Errorf("prompts mismatch (-want +got):\n%s", diff)
	}
	if h.sess.UserPrompt() != "dev> " || h.sess.Kind() != prompt.KindUserDefined {
		t.Errorf("user prompt = %q kind = %s", h.sess.UserPrompt(), h.sess.Kind())
	}
}

func TestAccept(t *testing.T) {
	respond := func(line string) []string {
		switch line {
		case "accept x prompt 'Value: '":
			return []string{"Value: "}
		case "42":
			return []string{"SQL> "}
		}
		return nil
	}
	h := newHarness(t, "SQL> ", respond, nil, "accept x prompt 'Value: '", "42")
	h.run(t)

	if diff := cmp.Diff([]string{"SQL> ", "Value: ", "SQL> "}, h.input.prompts); diff != "" {
		t.Errorf("prompts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"accept x prompt 'Value: '", "42"}, h.child.Lines()); diff != "" {
		t.Errorf("lines sent mismatch (-want +got):\n%s", diff)
	}
	if h.sess.Kind() != prompt.KindDefault {
		t.Errorf("kind = %s", h.sess.Kind())
	}
}

func TestAccept_Hide(t *testing.T) {
	respond := func(line string) []string {
		if strings.HasPrefix(line, "acc") {
			return []string{"Secret: "}
		}
		return []string{"SQL> "}
	}
	h := newHarness(t, "SQL> ", respond, nil, "ACC pw PROMPT 'Secret: ' HIDE", "s3cret")
	h.run(t)

	if diff := cmp.Diff([]string{"Secret: "}, h.input.passwords); diff != "" {
		t.Errorf("password reads mismatch (-want +got):\n%s", diff)
	}
}

func TestAccept_ErrorReply(t *testing.T) {
	respond := func(line string) []string {
		return []string{"SP2-0003: Ill-formed ACCEPT command starting as junk\n", "SQL> "}
	}
	h := newHarness(t, "SQL> ", respond, nil, "accept x prompt 'V: ' junk")
	h.run(t)

	if !strings.Contains(h.out.String(), "SP2-0003") {
		t.Errorf("output = %q", h.out.String())
	}
	if diff := cmp.Diff([]string{"SQL> ", "SQL> "}, h.input.prompts); diff != "" {
		t.Errorf("prompts mismatch (-want +got):\n%s", diff)
	}
}

func TestAccept_ErrorReplyKeepsTimedPrompt(t *testing.T) {
	respond := func(line string) []string {
		return []string{"SP2-0003: Ill-formed ACCEPT command starting as junk\n10:15:02 SQL> "}
	}
	h := newHarness(t, "SQL> ", respond, nil, "accept x prompt 'V: ' junk")
	h.run(t)

	if diff := cmp.Diff([]string{"SQL> ", "10:15:02 SQL> "}, h.input.prompts); diff != "" {
		t.Errorf("prompts mismatch (-want +got):\n%s", diff)
	}
	if h.sess.Kind() != prompt.KindDefault {
		t.Errorf("kind = %s, want default", h.sess.Kind())
	}
}

func TestAccept_ErrorReplyUnknownTailFallsBackToIdle(t *testing.T) {
	respond := func(line string) []string {
		return []string{"SP2-0003: Ill-formed ACCEPT command starting as junk\nwhatever"}
	}
	h := newHarness(t, "SQL> ", respond, nil, "accept x prompt 'V: ' junk")
	h.run(t)

	if diff := cmp.Diff([]string{"SQL> ", "SQL> "}, h.input.prompts); diff != "" {
		t.Errorf("prompts mismatch (-want +got):\n%s", diff)
	}
}

func TestPause_Command(t *testing.T) {
	respond := func(line string) []string {
		switch line {
		case "pause Press Enter":
			return []string{"Press Enter"}
		case "":
			return []string{"\n", "SQL> "}
		}
		return nil
	}
	h := newHarness(t, "SQL> ", respond, nil, "pause Press Enter", "")
	h.run(t)

	if diff := cmp.Diff([]string{"SQL> ", "Press Enter", "SQL> "}, h.input.prompts); diff != "" {
		t.Errorf("prompts mismatch (-want +got):\n%s", diff)
	}
	if !h.child.Deadline().IsZero() {
		t.Error("pause left reads non-blocking")
	}
}

func TestPause_SelectInPauseMode(t *testing.T) {
	pages := []string{
		"\nEMPNO\n-----\n 7369\n",
		" 7499\n\n2 rows selected.\n\nSQL> ",
	}
	respond := func(line string) []string {
		switch {
		case line == "set pause on":
			return []string{"SQL> "}
		case line == "" && len(pages) > 0:
			page := pages[0]
			pages = pages[1:]
			return []string{page}
		}
		return nil
	}
	h := newHarness(t, "SQL> ", respond, nil, "set pause on", "select empno from emp;", "", "")
	h.run(t)

	if !h.sess.PauseMode() {
		t.Error("pause mode not recorded")
	}
	if diff := cmp.Diff([]string{"set pause on", "select empno from emp;", "", ""}, h.child.Lines()); diff != "" {
		t.Errorf("lines sent mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(h.out.String(), " 7369\n 7499\n\n2 rows selected.") {
		t.Errorf("output = %q", h.out.String())
	}
	if h.sess.Kind() != prompt.KindDefault {
		t.Errorf("kind = %s", h.sess.Kind())
	}
}

func TestEdit_RoundTrip(t *testing.T) {
	lists := []string{
		"  1  select *\n  2* from emp\n",
		"  1  select *\n  2* from dept\n",
	}
	respond := func(line string) []string {
		if line == "list" {
			l := lists[0]
			lists = lists[1:]
			return []string{l, "SQL> "}
		}
		return []string{"SQL> "}
	}
	cfg := config.DefaultConfig()
	cfg.Completion.Enabled = false
	cfg.Editor.Command = "vi"
	h := newHarness(t, "SQL> ", respond, cfg, "ed")
	h.runner.rewrite = "select *\nfrom dept\n/\n"
	h.run(t)

	want := []string{"list", "del 1 LAST", "i select *", "i from dept", "list"}
	if diff := cmp.Diff(want, h.child.Lines()); diff != "" {
		t.Errorf("lines sent mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"select *\nfrom emp\n/\n"}, h.runner.content); diff != "" {
		t.Errorf("scratch content mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]bool{true}, h.runner.editing); diff != "" {
		t.Errorf("editing flag mismatch (-want +got):\n%s", diff)
	}
	if h.con.Editing() {
		t.Error("editing flag left set")
	}
	if !strings.Contains(h.out.String(), "2* from dept") {
		t.Errorf("output = %q", h.out.String())
	}
}

func TestEdit_ReplayStopsWhenChildTerminates(t *testing.T) {
	respond := func(line string) []string {
		switch line {
		case "list":
			return []string{"  1* select 1 from dual\n", "SQL> "}
		case "del 1 LAST":
			return []string{"unable to CONNECT to ORACLE after 3 attempts, exiting SQL*Plus\n"}
		}
		return []string{"SQL> "}
	}
	cfg := config.DefaultConfig()
	cfg.Completion.Enabled = false
	cfg.Editor.Command = "vi"
	h := newHarness(t, "SQL> ", respond, cfg, "ed", "select 2 from dual;")
	h.run(t)

	if diff := cmp.Diff([]string{"list", "del 1 LAST"}, h.child.Lines()); diff != "" {
		t.Errorf("lines sent mismatch (-want +got):\n%s", diff)
	}
	if h.sess.State() != session.StateShutdown {
		t.Errorf("state = %s, want shutdown", h.sess.State())
	}
}

func TestEdit_NothingToSave(t *testing.T) {
	respond := func(line string) []string {
		return []string{"SP2-0223: No lines in SQL buffer.\n", "SQL> "}
	}
	h := newHarness(t, "SQL> ", respond, nil, "edit")
	h.run(t)

	if !strings.Contains(h.out.String(), editor.NothingToSave) {
		t.Errorf("output = %q", h.out.String())
	}
	if len(h.runner.files) != 0 {
		t.Error("editor started for an empty buffer")
	}
}

func TestEdit_File(t *testing.T) {
	h := newHarness(t, "SQL> ", nil, nil, "ed report")
	h.run(t)

	if diff := cmp.Diff([]string{"report.sql"}, h.runner.files); diff != "" {
		t.Errorf("edited files mismatch (-want +got):\n%s", diff)
	}
	if len(h.child.Lines()) != 0 {
		t.Errorf("edit <file> talked to the child: %q", h.child.Lines())
	}
}

func TestEdit_EditorNotFound(t *testing.T) {
	h := newHarness(t, "SQL> ", nil, nil, "edit")
	h.con.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	h.con.editorLine = "nano"
	h.run(t)

	if !strings.Contains(h.out.String(), "Editor executable nano not found.") {
		t.Errorf("output = %q", h.out.String())
	}
}

func TestEdit_EditorFails(t *testing.T) {
	respond := func(line string) []string {
		return []string{"  1* select 1 from dual\n", "SQL> "}
	}
	h := newHarness(t, "SQL> ", respond, nil, "edit")
	h.runner.err = errors.New("exit status 1")
	h.run(t)

	if diff := cmp.Diff([]string{"list"}, h.child.Lines()); diff != "" {
		t.Errorf("lines sent mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(h.errw.String(), ErrEditor.Error()) {
		t.Errorf("stderr = %q", h.errw.String())
	}
}

// --- Completion ---

const tablesReply = `
TABLE_NAME                     OWNER
------------------------------ ------------------------------
DEPT                           SCOTT
EMP                            SCOTT

2 rows selected.

`

func TestEnsureCompletion_Rebuild(t *testing.T) {
	respond := func(line string) []string {
		switch line {
		case completion.PagesizeCommand:
			return []string{"pagesize 14\n", "SQL> "}
		case completion.TablesQuery:
			return []string{tablesReply, "SQL> "}
		}
		return []string{"SQL> "}
	}
	cfg := config.DefaultConfig()
	cfg.Completion.Columns = false
	cfg.Completion.Progress = true
	h := newHarness(t, "Connected.\nSQL> ", respond, cfg)
	h.run(t)

	want := []string{completion.PagesizeCommand, completion.TablesQuery, completion.ClearBufferCommand}
	if diff := cmp.Diff(want, h.child.Lines()); diff != "" {
		t.Errorf("lines sent mismatch (-want +got):\n%s", diff)
	}
	if len(h.index.Entries()) != 2 {
		t.Errorf("entries = %+v", h.index.Entries())
	}
	if !strings.Contains(h.out.String(), "gqlplus: scanning tables...") {
		t.Errorf("output = %q", h.out.String())
	}
	if strings.Contains(h.out.String(), "DEPT") {
		t.Error("index queries were displayed")
	}
}

func TestEnsureCompletion_ChildTerminates(t *testing.T) {
	respond := func(line string) []string {
		if line == completion.PagesizeCommand {
			return []string{"ERROR:\nORA-03114: not connected\nunable to CONNECT to ORACLE after 3 attempts, exiting SQL*Plus\n"}
		}
		return []string{"SQL> "}
	}
	h := newHarness(t, "Connected.\nSQL> ", respond, config.DefaultConfig())
	h.run(t)

	if diff := cmp.Diff([]string{completion.PagesizeCommand}, h.child.Lines()); diff != "" {
		t.Errorf("lines sent mismatch (-want +got):\n%s", diff)
	}
	if h.sess.State() != session.StateShutdown {
		t.Errorf("state = %s, want shutdown", h.sess.State())
	}
	if !strings.Contains(h.out.String(), "unable to CONNECT to ORACLE") {
		t.Errorf("output = %q", h.out.String())
	}
	if len(h.input.prompts) != 0 {
		t.Errorf("keyboard read after termination: %q", h.input.prompts)
	}
}

func TestEnsureCompletion_Unavailable(t *testing.T) {
	respond := func(line string) []string {
		if line == completion.PagesizeCommand {
			return []string{"SP2-0158: unknown SHOW option \"pagesize\"\n", "SQL> "}
		}
		return []string{"SQL> "}
	}
	cfg := config.DefaultConfig()
	h := newHarness(t, "SQL> ", respond, cfg, "select 1 from dual;")
	h.run(t)

	if !h.index.Disabled() {
		t.Error("index should be disabled")
	}
	if strings.Count(h.errw.String(), UnavailableWarning) != 1 {
		t.Errorf("stderr = %q", h.errw.String())
	}
	want := []string{completion.PagesizeCommand, completion.ClearBufferCommand, "select 1 from dual;"}
	if diff := cmp.Diff(want, h.child.Lines()); diff != "" {
		t.Errorf("lines sent mismatch (-want +got):\n%s", diff)
	}
}

func TestEnsureCompletion_SkippedWhenDisconnected(t *testing.T) {
	h := newHarness(t, "SQL> ", nil, config.DefaultConfig())
	h.sess.SetState(session.StateDisconnected)
	if h.con.CompletionEnabled() {
		t.Error("CompletionEnabled() = true while disconnected")
	}
	h.run(t)

	if len(h.child.Lines()) != 0 {
		t.Errorf("queries sent while disconnected: %q", h.child.Lines())
	}
}

// --- Signals ---

func TestHandleSignal(t *testing.T) {
	h := newHarness(t, "SQL> ", nil, nil)

	h.con.handleSignal(syscall.SIGINT)
	if h.child.Interrupts() != 1 {
		t.Errorf("Interrupts() = %d, want 1", h.child.Interrupts())
	}

	h.con.editing.Store(true)
	h.con.handleSignal(syscall.SIGINT)
	if h.child.Interrupts() != 1 {
		t.Error("SIGINT forwarded while editing")
	}
	h.con.editing.Store(false)

	h.con.handleSignal(syscall.SIGQUIT)
	if !h.child.WasTerminated() {
		t.Error("SIGQUIT should terminate the child")
	}
	if diff := cmp.Diff([]int{0}, h.exits); diff != "" {
		t.Errorf("exit codes mismatch (-want +got):\n%s", diff)
	}
	if h.out.String() != "Quit\n" {
		t.Errorf("output = %q", h.out.String())
	}
}

func TestWatchSignals_StopIsIdempotent(t *testing.T) {
	h := newHarness(t, "SQL> ", nil, nil)
	stop := h.con.WatchSignals(context.Background())
	stop()
	stop()
}
