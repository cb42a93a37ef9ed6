// Package login derives the connect string for the session and probes the
// database shell for a prompt defined in its startup files.
package login

import (
	"strings"
)

// Credentials is what is known about the login so far.
type Credentials struct {
	User     string
	Password string
	// Connect is a complete user/password@service string, when known.
	Connect string
}

// FromArgs scans the child's arguments for a logon. An argument containing
// '/' is a connect string, completed with sid when it names no service; any
// other plain argument is a user name. Options and @scripts are skipped, as
// is /nolog.
func FromArgs(args []string, sid string) Credentials {
	var c Credentials
	for _, arg := range args {
		if arg == "" || arg[0] == '-' || arg[0] == '@' || strings.EqualFold(arg, "/nolog") {
			continue
		}
		if !strings.Contains(arg, "/") {
			c.User = arg
			continue
		}
		switch {
		case strings.Contains(arg, "@"):
			c.Connect = arg
		case sid != "":
			c.Connect = arg + "@" + sid
		}
	}
	return c
}

// FromConnectLine reads the logon of a "connect" command typed at the
// prompt. Only the first argument is considered.
func FromConnectLine(line, sid string) Credentials {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Credentials{}
	}
	return FromArgs(fields[1:2], sid)
}

// Build assembles a connect string from a user name and password typed at
// the login prompts. It returns "" when no complete string can be formed.
func Build(user, password, sid string) string {
	switch {
	case strings.Contains(user, "@"):
		if strings.Contains(user, "/") {
			return user
		}
		if password != "" {
			name, service, _ := strings.Cut(user, "@")
			return name + "/" + password + "@" + service
		}
	case strings.Contains(password, "@"):
		return user + "/" + password
	case sid != "":
		if strings.Contains(user, "/") {
			return user + "@" + sid
		}
		if password != "" {
			return user + "/" + password + "@" + sid
		}
	}
	return ""
}
