package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/dcshock/sdkswitch/config"
	"github.com/dcshock/sdkswitch/internal/cli"
	"github.com/dcshock/sdkswitch/internal/ctxlog"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Stdout, os.Stderr, os.Args[1:])
	stop()
	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW, logW io.Writer, args []string) error {
	opts, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	settings, err := config.LoadSettings(opts.SettingsPath)
	if err != nil {
		return &cli.ExitError{Code: 2, Message: err.Error()}
	}
	settings, err = opts.Apply(settings)
	if err != nil {
		return err
	}

	level, _ := cli.ParseLevel(settings.LogLevel)
	logger := cli.NewLogger(logW, level, settings.LogFormat)
	ctx = ctxlog.WithLogger(ctx, logger)

	a, err := newApp(ctx, outW, settings)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Exec(ctx, opts.Command, opts.Args)
}
