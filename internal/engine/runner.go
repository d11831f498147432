package engine

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// ToolResult captures what the external tool subprocess produced. No
// other observable effect is assumed.
type ToolResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ToolRunner invokes the external coding tool inside dir. TimedOut and
// NotFound conditions are surfaced as env-category errors by the
// engine; a non-zero exit is reported through ToolResult, not err.
type ToolRunner interface {
	Run(ctx context.Context, dir, prompt string, allowedPaths []string) (ToolResult, error)
}

// ExecRunner runs the configured tool command as a subprocess with a
// bounded timeout, working directory set to the scoped workspace, the
// prompt passed via --message, and the allowed paths as trailing
// arguments.
type ExecRunner struct {
	Command string
	Timeout time.Duration
}

// ErrToolTimeout marks a run killed by the deadline.
var ErrToolTimeout = errors.New("tool invocation timed out")

// Run implements ToolRunner.
func (r *ExecRunner) Run(ctx context.Context, dir, prompt string, allowedPaths []string) (ToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	args := append([]string{"--message", prompt, "--yes"}, allowedPaths...)
	cmd := exec.CommandContext(ctx, r.Command, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := ToolResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if ctx.Err() == context.DeadlineExceeded {
		return res, ErrToolTimeout
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}
	return res, nil
}
