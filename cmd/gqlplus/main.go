// gqlplus is a command-line front-end for sqlplus with line editing,
// history and table name completion.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/acolita/gqlplus/internal/adapters/realclock"
	"github.com/acolita/gqlplus/internal/adapters/realfs"
	"github.com/acolita/gqlplus/internal/child"
	"github.com/acolita/gqlplus/internal/completion"
	"github.com/acolita/gqlplus/internal/config"
	"github.com/acolita/gqlplus/internal/console"
	"github.com/acolita/gqlplus/internal/history"
	"github.com/acolita/gqlplus/internal/launcher"
	"github.com/acolita/gqlplus/internal/lineedit"
	"github.com/acolita/gqlplus/internal/logging"
	"github.com/acolita/gqlplus/internal/login"
	"github.com/acolita/gqlplus/internal/prompt"
	"github.com/acolita/gqlplus/internal/recording"
	"github.com/acolita/gqlplus/internal/security"
	"github.com/acolita/gqlplus/internal/session"
)

// Version information - set at build time.
var (
	Version   = "1.16"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	sw, childArgs := launcher.SplitArgs(args)

	configPath := sw.ConfigPath
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	// Setup logging
	logCloser, err := logging.Setup(cfg.Logging.Level, cfg.Logging.Sanitize, cfg.Logging.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gqlplus: logging disabled: %v\n", err)
	}
	defer logCloser.Close()

	slog.Info("starting gqlplus",
		slog.String("version", Version),
		slog.String("git_commit", GitCommit),
		slog.String("args", logging.RedactConnect(strings.Join(childArgs, " "))),
	)

	fs := realfs.New()
	clock := realclock.New()

	bin, err := launcher.FindBinary(fs, cfg.Child.Path, nil)
	if err != nil {
		slog.Error("sqlplus not found", slog.String("error", err.Error()))
		fmt.Fprintln(os.Stderr, err)
		if sw.Usage {
			launcher.PrintUsage(os.Stdout, Version, cfg.CommandPrefix)
		}
		return 1
	}
	env := launcher.Environment(fs, cfg.Child.ExtraEnv)
	sid := fs.Getenv("ORACLE_SID")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A logon on the command line may run login.sql, which can redefine the
	// prompt before the first one is shown.
	engine := prompt.NewEngine()
	creds := login.FromArgs(childArgs, sid)
	prober := &login.Prober{Path: bin, Env: env, Timeout: cfg.Session.ProbeTimeout, Logger: slog.Default()}
	if !sw.NoLog && !sw.VersionOnly && creds.Connect != "" {
		if p, ok, err := prober.Probe(ctx, creds.Connect); err != nil {
			slog.Warn("sql prompt probe failed", slog.String("error", err.Error()))
		} else if ok {
			engine.SetUserPrompt(p)
		}
	}

	if sw.Progress || cfg.Completion.Progress {
		fmt.Println("gqlplus: starting sqlplus...")
	}
	proc, err := child.Start(child.Options{
		Path:      bin,
		Args:      childArgs,
		Env:       env,
		Transport: cfg.Child.Transport,
	})
	if err != nil {
		slog.Error("start sqlplus", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "gqlplus: %v\n", err)
		return 1
	}
	slog.Info("sqlplus started",
		slog.String("path", bin),
		slog.Int("pid", proc.Pid()),
		slog.String("transport", cfg.Child.Transport),
	)

	sessionID := uuid.NewString()

	var recorder session.Recorder
	if cfg.Recording.Enabled {
		rec, err := newRecorder(cfg, sessionID, childArgs, fs, clock)
		if err != nil {
			slog.Warn("session recording disabled", slog.String("error", err.Error()))
		} else {
			defer rec.Close()
			recorder = rec
			slog.Info("recording session", slog.String("file", rec.Path()))
		}
	}

	sess := session.New(proc, session.Options{
		ID:           sessionID,
		Output:       os.Stdout,
		Engine:       engine,
		Recorder:     recorder,
		Logger:       slog.Default(),
		Clock:        clock,
		ReadSize:     cfg.Child.ReadSize,
		PollInterval: cfg.Session.PollInterval,
		ReplyQuiet:   cfg.Session.ReplyQuiet,
		DrainDelay:   cfg.Session.DrainDelay,
	})
	if sw.NoLog {
		sess.SetState(session.StateDisconnected)
	}

	if sw.VersionOnly {
		// sqlplus -V prints its banner and exits without a prompt.
		if err := sess.Drain(); err != nil {
			slog.Warn("drain", slog.String("error", err.Error()))
		}
		sess.Close()
		return 0
	}

	historyFile := cfg.History.File
	if historyFile == "" {
		historyFile = history.DefaultFile(fs)
	}
	hist := history.New(cfg.History.Limit)
	if err := hist.Load(fs, historyFile); err != nil {
		slog.Warn("history not loaded", slog.String("file", historyFile), slog.String("error", err.Error()))
	}

	index := completion.NewIndex(cfg.Completion.Columns && !sw.NoColumns)

	var con *console.Console
	completer := &completion.Completer{
		Index:   index,
		Enabled: func() bool { return con != nil && con.CompletionEnabled() },
	}
	input, err := lineedit.New(lineedit.Options{
		HistoryFile:  historyFile,
		HistoryLimit: cfg.History.Limit,
		Completer:    completer,
	})
	if err != nil {
		slog.Error("line editor", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "gqlplus: %v\n", err)
		sess.Terminate()
		sess.Close()
		return 1
	}
	hist.SetSink(input)

	filter, err := security.NewCommandFilter(nil)
	if err != nil {
		slog.Warn("command filter", slog.String("error", err.Error()))
	}

	// Set up config hot-reload
	updates, publish := config.Updates(1)
	if configPath != "" {
		configWatcher, err := config.NewWatcher(configPath, publish)
		if err != nil {
			slog.Warn("config hot-reload disabled", slog.String("error", err.Error()))
		} else {
			defer configWatcher.Close()
			slog.Info("config hot-reload enabled", slog.String("path", configPath))
		}
	}

	con = console.New(console.Options{
		Session:     sess,
		Engine:      engine,
		Input:       input,
		History:     hist,
		Index:       index,
		Filter:      filter,
		Prober:      prober,
		Config:      cfg,
		Updates:     updates,
		Credentials: creds,
		SID:         sid,
		Progress:    sw.Progress,
		FS:          fs,
		Clock:       clock,
		Logger:      slog.Default(),
		Exit: func(code int) {
			input.Close()
			os.Exit(code)
		},
	})

	stop := con.WatchSignals(ctx)
	runErr := con.Run(ctx)
	stop()

	if err := sess.Drain(); err != nil {
		slog.Warn("drain", slog.String("error", err.Error()))
	}
	sess.Close()
	input.Close()

	code := 0
	if runErr != nil {
		slog.Error("session ended", slog.String("error", runErr.Error()))
		if !errors.Is(runErr, session.ErrBrokenChannel) {
			fmt.Fprintf(os.Stderr, "gqlplus: %v\n", runErr)
		}
		code = 1
	}

	if historyFile != "" && hist.Len() > 0 {
		fmt.Printf("\nSession history saved to: %s\n", historyFile)
	}
	if sw.Usage {
		launcher.PrintUsage(os.Stdout, Version, cfg.CommandPrefix)
	}
	return code
}

func newRecorder(cfg *config.Config, id string, args []string, fs *realfs.FS, clock *realclock.Clock) (*recording.Recorder, error) {
	dir := cfg.Recording.Path
	if dir == "" {
		dir = recording.DefaultDir()
	}
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		width, height = 80, 24
	}
	return recording.NewRecorder(recording.Options{
		Dir:       dir,
		SessionID: id,
		Title:     logging.RedactConnect("sqlplus " + strings.Join(args, " ")),
		Width:     width,
		Height:    height,
	}, fs, clock)
}
