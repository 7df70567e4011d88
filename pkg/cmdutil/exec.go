// Package cmdutil runs external commands with bounded execution time and
// fully buffered output. Commands are built as argv slices, never as shell
// strings, so nothing from the caller is re-interpreted by a shell unless
// the caller explicitly asks for one.
package cmdutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// ExecOptions configures command execution.
type ExecOptions struct {
	// Dir is the working directory for the command.
	Dir string

	// Timeout is the maximum execution time.
	// If zero, no timeout is applied.
	Timeout time.Duration

	// Env contains environment variables for the command.
	// Each entry should be in the form "KEY=value".
	Env []string
}

// Result contains the result of a command execution.
type Result struct {
	// Stdout is the captured standard output.
	Stdout string

	// Stderr is the captured standard error.
	Stderr string

	// ExitCode is the exit code of the command. -1 if the command
	// did not run to completion (timeout, unstartable binary).
	ExitCode int

	// TimedOut reports whether the command was killed by the timeout.
	TimedOut bool

	// Duration is how long the command took to execute.
	Duration time.Duration
}

// OK reports whether the command ran to completion with exit code zero.
func (r *Result) OK() bool {
	return !r.TimedOut && r.ExitCode == 0
}

// Run executes a command with the given options. The command is provided
// as an argv slice. Output is fully buffered; nothing is streamed.
//
// A non-zero exit code is not an error here: the Result carries it and
// the caller decides. An error is returned only when the command could
// not be run at all (empty argv, missing binary, unreadable directory).
func Run(ctx context.Context, opts ExecOptions, argv []string) (*Result, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: -1,
		Duration: time.Since(start),
	}

	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// The command ran and failed; the exit code tells the story.
			return result, nil
		}
		return result, fmt.Errorf("command failed to start: %w", err)
	}

	return result, nil
}

// FormatCommand formats argv parts into a readable string for banners and logs.
// Example: ["git", "commit", "-m", "my message"] -> "git commit -m 'my message'"
func FormatCommand(argv []string) string {
	if len(argv) == 0 {
		return "<empty command>"
	}

	quoted := make([]string, len(argv))
	for i, part := range argv {
		if strings.ContainsAny(part, " \t\n\"'") {
			quoted[i] = shellquote.Join(part)
		} else {
			quoted[i] = part
		}
	}

	return strings.Join(quoted, " ")
}
