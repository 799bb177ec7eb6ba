package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"labpipe/internal/app"
	"labpipe/internal/cli"
	"labpipe/internal/hcl"
)

// main is the entrypoint for the labpipe binary.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and
// error handling.
func run(outW io.Writer, args []string) (err error) {
	appConfig, shouldExit, parseErr := cli.Parse(args, outW)
	if parseErr != nil {
		return parseErr
	}
	if shouldExit {
		return nil
	}

	// The app panics on fatal startup errors (unreadable or invalid
	// pipeline definitions); recover into a clean error for the user.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("application startup panicked: %v", r)
		}
	}()

	loader := hcl.NewLoader()
	pipeApp := app.New(outW, appConfig, loader)

	if appConfig.Watch {
		return pipeApp.RunWatch(context.Background())
	}
	return pipeApp.Run(context.Background())
}
