// Package testutil provides shared test infrastructure: a scripted
// command runner so no test ever needs a real conda or jupyter install,
// a thread-safe log buffer, and a harness that assembles a pipeline tree
// in a temp directory and runs the app against it.
package testutil

import (
	"context"
	"strings"
	"sync"

	"labpipe/internal/runner"
)

// HandlerFunc scripts the behavior of one matched command.
type HandlerFunc func(cmd runner.Command) (runner.Result, error)

// FakeRunner is a runner.Runner that records every command in invocation
// order and dispatches to substring-matched handlers. Unmatched commands
// succeed with empty output, so tests only script what they assert on.
type FakeRunner struct {
	mu       sync.Mutex
	commands []runner.Command
	handlers []fakeHandler
}

type fakeHandler struct {
	match string
	fn    HandlerFunc
}

// NewFakeRunner returns an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{}
}

// Handle registers a handler for commands whose rendered command line
// contains match. Handlers are tried in registration order.
func (f *FakeRunner) Handle(match string, fn HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, fakeHandler{match: match, fn: fn})
}

// FailOn makes any command containing match fail with the given error.
func (f *FakeRunner) FailOn(match string, err error) {
	f.Handle(match, func(runner.Command) (runner.Result, error) {
		return runner.Result{ExitCode: 1}, err
	})
}

// RespondOn makes any command containing match succeed with the given
// stdout.
func (f *FakeRunner) RespondOn(match string, stdout string) {
	f.Handle(match, func(runner.Command) (runner.Result, error) {
		return runner.Result{Stdout: []byte(stdout)}, nil
	})
}

// Run implements runner.Runner.
func (f *FakeRunner) Run(ctx context.Context, cmd runner.Command) (runner.Result, error) {
	if err := ctx.Err(); err != nil {
		return runner.Result{}, err
	}

	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	handlers := append([]fakeHandler(nil), f.handlers...)
	f.mu.Unlock()

	line := cmd.String()
	for _, h := range handlers {
		if strings.Contains(line, h.match) {
			return h.fn(cmd)
		}
	}
	return runner.Result{}, nil
}

// Commands returns the recorded invocations in order.
func (f *FakeRunner) Commands() []runner.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.Command(nil), f.commands...)
}

// CommandLines returns the recorded invocations rendered as command
// lines, in order.
func (f *FakeRunner) CommandLines() []string {
	cmds := f.Commands()
	lines := make([]string, len(cmds))
	for i, c := range cmds {
		lines[i] = c.String()
	}
	return lines
}
