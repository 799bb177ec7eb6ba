// Package runner abstracts external tool invocation (conda, jupyter,
// tlmgr) behind a single interface so pipeline stages can be tested
// against a scripted fake instead of a real toolchain.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"labpipe/internal/ctxlog"
)

// Command describes one external tool invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

// String renders the command the way a user would type it, for logs and
// error messages.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result carries the captured output of a finished command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner executes external commands. Implementations must honor context
// cancellation: a cancelled context kills the child process and returns
// the context error.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner is the production Runner backed by os/exec.
type ExecRunner struct{}

// NewExecRunner returns a Runner that executes real processes.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the command synchronously and captures its output. A
// non-zero exit is returned as an error carrying the command line and the
// tail of stderr, which is the only diagnostic a failed CI step surfaces.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Running external command.", "command", cmd.String(), "dir", cmd.Dir)

	execCmd := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	execCmd.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		execCmd.Env = cmd.Env
	}

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()
	result := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	if err != nil {
		if ctx.Err() != nil {
			return result, fmt.Errorf("command %q interrupted: %w", cmd.String(), ctx.Err())
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, fmt.Errorf("command %q exited with code %d: %s",
				cmd.String(), result.ExitCode, stderrTail(stderr.Bytes()))
		}
		return result, fmt.Errorf("command %q failed to start: %w", cmd.String(), err)
	}

	logger.Debug("Command finished.", "command", cmd.Name, "stdout_bytes", stdout.Len())
	return result, nil
}

// stderrTail keeps error messages readable when a tool dumps a long trace.
func stderrTail(stderr []byte) string {
	const maxTail = 2048
	s := strings.TrimSpace(string(stderr))
	if s == "" {
		return "(no stderr)"
	}
	if len(s) > maxTail {
		s = "..." + s[len(s)-maxTail:]
	}
	return s
}
