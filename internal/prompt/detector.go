package prompt

import (
	"bytes"
	"fmt"
	"regexp"
	"sync"

	"github.com/acolita/gqlplus/internal/buffer"
)

// Result describes what one chunk of child output did to the current turn.
type Result struct {
	// Display is output that is ready to be shown.
	Display []byte
	// Complete is set once the child is waiting for input.
	Complete bool
	Kind     Kind
	// Prompt is the prompt text the child printed, empty for terminal turns.
	Prompt string
	// Pattern names the pattern that completed the turn.
	Pattern string
}

// Engine accumulates child output and decides when a turn is complete.
type Engine struct {
	mu             sync.RWMutex
	patterns       []Pattern
	customPatterns []Pattern

	buf        *buffer.Buffer
	userPrompt string
	startup    bool
	newline    bool
}

// NewEngine creates an engine with the default patterns, in startup mode.
func NewEngine() *Engine {
	return &Engine{
		patterns: DefaultPatterns(),
		buf:      buffer.New(),
		startup:  true,
	}
}

// AddPattern adds a custom pattern, checked before the defaults.
func (e *Engine) AddPattern(p Pattern) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.customPatterns = append(e.customPatterns, p)
}

// AddPatternFromConfig adds a pattern from configuration. The regex is matched
// against the trailing line; kind "terminal" patterns match anywhere.
func (e *Engine) AddPatternFromConfig(name, regex, kind string) error {
	re, err := regexp.Compile(regex)
	if err != nil {
		return fmt.Errorf("compile pattern %q: %w", name, err)
	}

	var k Kind
	switch kind {
	case "password":
		k = KindPasswordLogin
	case "idle":
		k = KindUserDefined
	case "recover":
		k = KindRecover
	case "terminal":
		k = KindTerminal
	default:
		k = KindValue
	}

	e.AddPattern(Pattern{
		Name:     name,
		Kind:     k,
		Regex:    re,
		Anywhere: k == KindTerminal,
	})
	return nil
}

// ClearCustomPatterns removes all custom patterns.
func (e *Engine) ClearCustomPatterns() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.customPatterns = nil
}

// SetUserPrompt sets the prompt defined with "set sqlprompt".
func (e *Engine) SetUserPrompt(p string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.userPrompt = p
}

// UserPrompt returns the user-defined prompt.
func (e *Engine) UserPrompt() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.userPrompt
}

// SetStartup toggles startup mode, in which "Disconnected from Oracle" ends
// the session.
func (e *Engine) SetStartup(startup bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startup = startup
}

// Reset discards any partial turn.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buf.Reset()
	e.newline = false
}

// Take removes and returns the partial turn held back so far.
func (e *Engine) Take() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.newline = false
	return e.buf.Take()
}

// Feed adds a chunk of child output. Text before the last newline is released
// for display as soon as it arrives; the trailing line is held back until it
// is known whether it is a prompt.
func (e *Engine) Feed(chunk []byte) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.buf.Append(chunk)
	if bytes.IndexByte(chunk, '\n') >= 0 {
		e.newline = true
	}

	ctx := Context{UserPrompt: e.userPrompt, Startup: e.startup, Newline: e.newline}
	if p, ok := e.match(ctx); ok {
		return e.complete(p)
	}
	return Result{Display: e.buf.Flush()}
}

// Classify returns the pattern matching a standalone prompt line, for callers
// that already hold a complete reply.
func (e *Engine) Classify(text string) (Kind, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ctx := Context{UserPrompt: e.userPrompt, Startup: e.startup}
	for _, p := range e.all() {
		if p.matches(text, ctx) {
			return p.Kind, true
		}
	}
	return KindNone, false
}

func (e *Engine) all() []Pattern {
	all := make([]Pattern, 0, len(e.customPatterns)+len(e.patterns))
	all = append(all, e.customPatterns...)
	return append(all, e.patterns...)
}

func (e *Engine) match(ctx Context) (Pattern, bool) {
	tail := e.buf.LastLine()
	whole := e.buf.String()
	for _, p := range e.all() {
		text := tail
		if p.Anywhere {
			text = whole
		}
		if p.matches(text, ctx) {
			return p, true
		}
	}
	return Pattern{}, false
}

func (e *Engine) complete(p Pattern) Result {
	defer func() { e.newline = false }()

	if p.Kind == KindTerminal {
		return Result{Display: e.buf.Take(), Complete: true, Kind: KindTerminal, Pattern: p.Name}
	}
	tail := e.buf.LastLine()
	content := e.buf.Take()
	return Result{
		Display:  content[:len(content)-len(tail)],
		Complete: true,
		Kind:     p.Kind,
		Prompt:   tail,
		Pattern:  p.Name,
	}
}
