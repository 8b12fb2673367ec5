package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	execute "github.com/alexellis/go-execute/v2"
)

// Result holds the captured output of an external tool.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner runs an external program to completion.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner runs programs with go-execute. A non-zero exit status is
// reported as an error carrying the tool's stderr.
type ExecRunner struct {
	Logger *slog.Logger
	// Env is appended to the inherited environment.
	Env []string
}

// NewExecRunner creates a runner that logs through logger.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{Logger: logger}
}

// Run executes name with args and waits for it to exit or for ctx to end.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	r.Logger.Debug("Executing", "command", name, "args", args)

	task := execute.ExecTask{
		Command:     name,
		Args:        args,
		Env:         r.Env,
		StreamStdio: false,
	}

	res, err := task.Execute(ctx)
	result := Result{Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: res.ExitCode}
	if err != nil {
		return result, fmt.Errorf("failed to run %s: %w", name, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, fmt.Errorf("%s interrupted: %w", name, ctxErr)
	}
	if res.ExitCode != 0 {
		r.Logger.Warn("Non-zero exit code", "command", name, "exit_code", res.ExitCode)
		return result, &ExitError{Name: name, Code: res.ExitCode, Stderr: strings.TrimSpace(res.Stderr)}
	}
	return result, nil
}

// ExitError reports a tool that ran but exited with a failure status.
type ExitError struct {
	Name   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited with status %d", e.Name, e.Code)
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Name, e.Code, e.Stderr)
}
