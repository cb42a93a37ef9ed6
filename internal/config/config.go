// Package config handles configuration parsing for gqlplus.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/acolita/gqlplus/internal/ports"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath returns the default config file path:
// $XDG_CONFIG_HOME/gqlplus/config.yaml or ~/.config/gqlplus/config.yaml
func DefaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "gqlplus", "config.yaml")
}

// Config represents the top-level configuration.
type Config struct {
	Child           ChildConfig      `yaml:"child"`
	Completion      CompletionConfig `yaml:"completion"`
	History         HistoryConfig    `yaml:"history"`
	Editor          EditorConfig     `yaml:"editor"`
	Session         SessionConfig    `yaml:"session"`
	Security        SecurityConfig   `yaml:"security"`
	Logging         LoggingConfig    `yaml:"logging"`
	Recording       RecordingConfig  `yaml:"recording"`
	PromptDetection PromptConfig     `yaml:"prompt_detection"`
	CommandPrefix   string           `yaml:"command_prefix"` // in-band front-end commands, e.g. "--!"
}

// ChildConfig defines how the database shell is started.
type ChildConfig struct {
	Path      string   `yaml:"path"`      // sqlplus executable (overrides discovery)
	Transport string   `yaml:"transport"` // "pipe" or "pty"
	ReadSize  int      `yaml:"read_size"` // bytes per read
	ExtraEnv  []string `yaml:"extra_env"` // extra variables passed through to the child
}

// CompletionConfig defines table and column completion settings.
type CompletionConfig struct {
	Enabled  bool `yaml:"enabled"`
	Columns  bool `yaml:"columns"`  // describe every table for column names
	Progress bool `yaml:"progress"` // timing prefix and scan messages
}

// HistoryConfig defines command history settings.
type HistoryConfig struct {
	File  string `yaml:"file"`  // empty keeps history in memory only
	Limit int    `yaml:"limit"` // maximum entries kept
}

// EditorConfig defines the external editor used by "edit".
type EditorConfig struct {
	Command     string `yaml:"command"`      // overrides login.sql and $EDITOR
	ScratchFile string `yaml:"scratch_file"` // buffer file for "edit" without a name
	Extension   string `yaml:"extension"`    // appended to "edit <name>"
}

// SessionConfig defines child I/O timing.
type SessionConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"` // bound on each non-blocking read
	ReplyQuiet   time.Duration `yaml:"reply_quiet"`   // silence that ends a raw reply
	DrainDelay   time.Duration `yaml:"drain_delay"`   // wait before the final drain
	ProbeTimeout time.Duration `yaml:"probe_timeout"` // bound on the prompt probe
}

// SecurityConfig defines security settings.
type SecurityConfig struct {
	CommandBlocklist []string `yaml:"command_blocklist"` // Regex patterns for blocked commands
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`    // "debug", "info", "warn", "error"
	Sanitize bool   `yaml:"sanitize"` // sanitize sensitive data from logs
	Path     string `yaml:"path"`     // log file; stderr belongs to the session
}

// RecordingConfig defines session recording settings.
type RecordingConfig struct {
	Enabled bool   `yaml:"enabled"` // enable session recording
	Path    string `yaml:"path"`    // directory to store recordings
}

// PromptConfig defines prompt detection settings.
type PromptConfig struct {
	CustomPatterns []PatternConfig `yaml:"custom_patterns"`
}

// PatternConfig defines a custom prompt pattern.
type PatternConfig struct {
	Name  string `yaml:"name"`
	Regex string `yaml:"regex"`
	Kind  string `yaml:"kind"` // "idle", "password", "value", "recover", "terminal"
}

// DefaultCommandPrefix introduces the front-end's in-band commands.
const DefaultCommandPrefix = "--!"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Child: ChildConfig{
			Transport: "pipe",
			ReadSize:  4096,
		},
		Completion: CompletionConfig{
			Enabled: true,
			Columns: true,
		},
		History: HistoryConfig{
			Limit: 200,
		},
		Editor: EditorConfig{
			ScratchFile: "afiedt.buf",
			Extension:   ".sql",
		},
		Session: SessionConfig{
			PollInterval: 10 * time.Millisecond,
			ReplyQuiet:   50 * time.Millisecond,
			DrainDelay:   100 * time.Millisecond,
			ProbeTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:    "warn",
			Sanitize: true,
		},
		CommandPrefix: DefaultCommandPrefix,
	}
}

// Load loads configuration from a YAML file.
// An optional FileSystem can be passed for testing; if omitted, the real OS is used.
func Load(path string, fsys ...ports.FileSystem) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	var data []byte
	var err error
	if len(fsys) > 0 && fsys[0] != nil {
		data, err = fsys[0].ReadFile(path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration and fills in defaults for zero values.
func (c *Config) Validate() error {
	def := DefaultConfig()

	switch c.Child.Transport {
	case "":
		c.Child.Transport = def.Child.Transport
	case "pipe", "pty":
	default:
		return fmt.Errorf("invalid child transport %q: must be \"pipe\" or \"pty\"", c.Child.Transport)
	}
	if c.Child.ReadSize <= 0 {
		c.Child.ReadSize = def.Child.ReadSize
	}
	if c.History.Limit <= 0 {
		c.History.Limit = def.History.Limit
	}
	if c.Editor.ScratchFile == "" {
		c.Editor.ScratchFile = def.Editor.ScratchFile
	}
	if c.Editor.Extension == "" {
		c.Editor.Extension = def.Editor.Extension
	}
	if c.Session.PollInterval <= 0 {
		c.Session.PollInterval = def.Session.PollInterval
	}
	if c.Session.ReplyQuiet <= 0 {
		c.Session.ReplyQuiet = def.Session.ReplyQuiet
	}
	if c.Session.DrainDelay <= 0 {
		c.Session.DrainDelay = def.Session.DrainDelay
	}
	if c.Session.ProbeTimeout <= 0 {
		c.Session.ProbeTimeout = def.Session.ProbeTimeout
	}
	if c.CommandPrefix == "" {
		c.CommandPrefix = def.CommandPrefix
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level %q", c.Logging.Level)
	}

	for _, p := range c.PromptDetection.CustomPatterns {
		if p.Name == "" || p.Regex == "" {
			return fmt.Errorf("custom pattern needs a name and a regex")
		}
	}

	return nil
}
