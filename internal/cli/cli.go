// Package cli parses command-line arguments, validates user input and
// handles process-level concerns like exit codes. It merges CLI flags over
// the settings file.
package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dcshock/sdkswitch/config"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Commands and the number of arguments each takes.
var commands = map[string]int{
	"list":       0,
	"start":      1,
	"resume":     0,
	"abort":      0,
	"status":     0,
	"debug":      1,
	"draw":       1,
	"remove-all": 0,
}

// Options is a parsed command line.
type Options struct {
	// SettingsPath is the settings file; flags below override its values.
	SettingsPath string
	Command      string
	Args         []string

	overrides map[string]string
}

// Parse processes command-line arguments. It returns the parsed Options, a
// boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*Options, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("sdkswitch", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
sdkswitch - Switch a project between XR hardware SDK profiles.

Usage:
  sdkswitch [options] COMMAND [ARG]

Commands:
  list              List the available profiles.
  start PROFILE     Apply a profile (resumes an interrupted run first).
  resume            Continue a run interrupted by a restart.
  abort             Stop the active run and drop its saved state.
  status            Show saved runs and recent run history.
  debug GROUP       Dump loaders, feature sets and features of a platform group ("all" for every group).
  draw PROFILE      Print the step graph of a profile in DOT format.
  remove-all        Remove the conflicting SDK packages.

Options:
`)
		flagSet.PrintDefaults()
	}

	settingsFlag := flagSet.String("config", config.DefaultSettingsFile, "Path to the settings file.")
	flagSet.String("state-dir", "", "Directory for saved run state. Overrides state_dir.")
	flagSet.String("project", "", "Project state file. Overrides project_file.")
	flagSet.String("profiles", "", "Extra profile declarations. Overrides profiles_file.")
	flagSet.String("tick", "", "Host tick interval, e.g. 16ms. Overrides tick_interval.")
	flagSet.String("log-format", "", "Log output format. Options: 'text' or 'json'.")
	flagSet.String("log-level", "", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	if flagSet.NArg() == 0 {
		slog.Debug("No command provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}
	cmd := strings.ToLower(flagSet.Arg(0))
	want, ok := commands[cmd]
	if !ok {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q", flagSet.Arg(0))}
	}
	rest := flagSet.Args()[1:]
	if len(rest) != want {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("%s takes %d argument(s), got %d", cmd, want, len(rest))}
	}

	opts := &Options{
		SettingsPath: *settingsFlag,
		Command:      cmd,
		Args:         rest,
		overrides:    map[string]string{},
	}
	flagSet.Visit(func(f *flag.Flag) {
		if f.Name != "config" {
			opts.overrides[f.Name] = f.Value.String()
		}
	})
	slog.Debug("Arguments parsed successfully.", "command", cmd)
	return opts, false, nil
}

// Apply merges the flags that were set over s and validates the result.
func (o *Options) Apply(s config.Settings) (config.Settings, error) {
	for name, v := range o.overrides {
		switch name {
		case "state-dir":
			s.StateDir = v
		case "project":
			s.ProjectFile = v
		case "profiles":
			s.ProfilesFile = v
		case "tick":
			d, err := time.ParseDuration(v)
			if err != nil {
				return s, &ExitError{Code: 2, Message: fmt.Sprintf("invalid tick: %v", err)}
			}
			s.TickInterval = config.Duration(d)
		case "log-format":
			s.LogFormat = strings.ToLower(v)
		case "log-level":
			s.LogLevel = strings.ToLower(v)
		}
	}
	if _, err := ParseLevel(s.LogLevel); err != nil {
		return s, &ExitError{Code: 2, Message: err.Error()}
	}
	if err := s.Validate(); err != nil {
		return s, &ExitError{Code: 2, Message: err.Error()}
	}
	return s, nil
}

// ParseLevel maps a log level name onto slog.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}
}

// NewLogger builds the application logger.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
