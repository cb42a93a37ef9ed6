// Package prompt infers, from the unframed output of the database shell, where
// one turn ends and what kind of input the child is now waiting for.
package prompt

import (
	"regexp"
	"strings"
)

// Kind is the wait state of the child at the end of a turn.
type Kind int

const (
	KindNone Kind = iota
	KindDefault
	KindUserDefined
	KindNumeric
	KindUserName
	KindPasswordLogin
	KindPasswordOld
	KindPasswordNew
	KindPasswordRetype
	KindValue
	KindRecover
	KindTerminal
)

var kindNames = map[Kind]string{
	KindNone:           "none",
	KindDefault:        "default",
	KindUserDefined:    "user_defined",
	KindNumeric:        "numeric",
	KindUserName:       "user_name",
	KindPasswordLogin:  "password",
	KindPasswordOld:    "old_password",
	KindPasswordNew:    "new_password",
	KindPasswordRetype: "retype_password",
	KindValue:          "value",
	KindRecover:        "recover",
	KindTerminal:       "terminal",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// IsPassword reports whether input typed at this prompt must not be echoed,
// recorded or kept in history.
func (k Kind) IsPassword() bool {
	switch k {
	case KindPasswordLogin, KindPasswordOld, KindPasswordNew, KindPasswordRetype:
		return true
	}
	return false
}

// IsIdle reports whether the child is at its command prompt.
func (k Kind) IsIdle() bool {
	return k == KindDefault || k == KindUserDefined
}

// Prompt texts and markers emitted by sqlplus.
const (
	DefaultPrompt        = "SQL> "
	UserNamePrompt       = "Enter user-name: "
	PasswordPrompt       = "Enter password: "
	OldPasswordPrompt    = "Old password: "
	NewPasswordPrompt    = "New password: "
	RetypePasswordPrompt = "Retype new password: "
	ValuePromptPrefix    = "Enter value for "
	RecoverPrompt        = "Specify log: {<RET>=suggested | filename | AUTO | CANCEL}"

	DisconnectedMarker = "Disconnected from Oracle"
	ConnectFailMarker  = "unable to CONNECT to ORACLE"
	UsageMarker        = "Usage: SQLPLUS"
)

// Context carries the session facts some patterns depend on.
type Context struct {
	// UserPrompt is the prompt defined with "set sqlprompt", if any.
	UserPrompt string
	// Startup is true until the session first reaches a stable state.
	Startup bool
	// Newline is true once the current turn has produced a newline.
	Newline bool
}

// Pattern recognizes one prompt shape.
type Pattern struct {
	Name string
	Kind Kind
	// Regex is matched against the trailing line, or against the whole
	// unflushed buffer when Anywhere is set.
	Regex    *regexp.Regexp
	Anywhere bool
	// Match, when set, is used instead of Regex.
	Match func(text string, ctx Context) bool
}

func (p Pattern) matches(text string, ctx Context) bool {
	if p.Match != nil {
		return p.Match(text, ctx)
	}
	if p.Regex != nil {
		return p.Regex.MatchString(text)
	}
	return false
}

func exact(s string) func(string, Context) bool {
	return func(tail string, _ Context) bool { return tail == s }
}

// DefaultPatterns returns the built-in patterns in priority order.
func DefaultPatterns() []Pattern {
	return []Pattern{
		// Terminal messages end the session wherever they appear.
		{
			Name:     "disconnected",
			Kind:     KindTerminal,
			Anywhere: true,
			Match: func(text string, ctx Context) bool {
				return ctx.Startup && strings.Contains(text, DisconnectedMarker)
			},
		},
		{
			Name:     "connect_failed",
			Kind:     KindTerminal,
			Anywhere: true,
			Regex:    regexp.MustCompile(regexp.QuoteMeta(ConnectFailMarker)),
		},
		{
			Name:     "usage",
			Kind:     KindTerminal,
			Anywhere: true,
			Regex:    regexp.MustCompile(regexp.QuoteMeta(UsageMarker)),
		},

		// Idle prompts
		{
			Name: "user_defined",
			Kind: KindUserDefined,
			Match: func(tail string, ctx Context) bool {
				return ctx.UserPrompt != "" && tail == ctx.UserPrompt
			},
		},
		{
			Name:  "default",
			Kind:  KindDefault,
			Match: exact(DefaultPrompt),
		},
		{
			Name: "user_defined_timed",
			Kind: KindUserDefined,
			Match: func(tail string, ctx Context) bool {
				return ctx.UserPrompt != "" && isTimed(tail, ctx.UserPrompt)
			},
		},
		{
			Name: "default_timed",
			Kind: KindDefault,
			Match: func(tail string, _ Context) bool {
				return isTimed(tail, DefaultPrompt)
			},
		},

		// Login and password dialogue
		{Name: "user_name", Kind: KindUserName, Match: exact(UserNamePrompt)},
		{Name: "password", Kind: KindPasswordLogin, Match: exact(PasswordPrompt)},
		{Name: "old_password", Kind: KindPasswordOld, Match: exact(OldPasswordPrompt)},
		{Name: "new_password", Kind: KindPasswordNew, Match: exact(NewPasswordPrompt)},
		{Name: "retype_password", Kind: KindPasswordRetype, Match: exact(RetypePasswordPrompt)},

		// Substitution variables and media recovery
		{
			Name:  "value",
			Kind:  KindValue,
			Regex: regexp.MustCompile(`^` + regexp.QuoteMeta(ValuePromptPrefix) + `.+: $`),
		},
		{Name: "recover", Kind: KindRecover, Match: exact(RecoverPrompt)},

		// Statement continuation
		{
			Name: "numeric",
			Kind: KindNumeric,
			Match: func(tail string, ctx Context) bool {
				return !ctx.Newline && IsContinuation(tail)
			},
		},
	}
}
