package cmdutil

import (
	"context"
	"testing"
	"time"
)

func TestRun_Success(t *testing.T) {
	result, err := Run(context.Background(), ExecOptions{}, []string{"echo", "hello"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if !result.OK() {
		t.Errorf("Expected OK result, got exit code %d", result.ExitCode)
	}
	if result.Stdout != "hello\n" {
		t.Errorf("Stdout = %q, expected %q", result.Stdout, "hello\n")
	}
	if result.Stderr != "" {
		t.Errorf("Stderr = %q, expected empty", result.Stderr)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	result, err := Run(context.Background(), ExecOptions{}, []string{"sh", "-c", "echo oops >&2; exit 3"})
	if err != nil {
		t.Fatalf("Non-zero exit should not be a Run error, got: %v", err)
	}

	if result.OK() {
		t.Error("Expected failure result")
	}
	if result.ExitCode != 3 {
		t.Errorf("ExitCode = %d, expected 3", result.ExitCode)
	}
	if result.Stderr != "oops\n" {
		t.Errorf("Stderr = %q, expected %q", result.Stderr, "oops\n")
	}
}

func TestRun_SeparateStreams(t *testing.T) {
	result, err := Run(context.Background(), ExecOptions{}, []string{"sh", "-c", "echo out; echo err >&2"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if result.Stdout != "out\n" {
		t.Errorf("Stdout = %q, expected %q", result.Stdout, "out\n")
	}
	if result.Stderr != "err\n" {
		t.Errorf("Stderr = %q, expected %q", result.Stderr, "err\n")
	}
}

func TestRun_Timeout(t *testing.T) {
	opts := ExecOptions{Timeout: 100 * time.Millisecond}

	start := time.Now()
	result, err := Run(context.Background(), opts, []string{"sleep", "10"})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Timeout should not be a Run error, got: %v", err)
	}
	if !result.TimedOut {
		t.Error("Expected TimedOut to be set")
	}
	if result.OK() {
		t.Error("Timed-out command must not be OK")
	}
	if elapsed > 5*time.Second {
		t.Errorf("Command was not killed by the timeout, ran for %v", elapsed)
	}
}

func TestRun_WorkingDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	result, err := Run(context.Background(), ExecOptions{Dir: tmpDir}, []string{"pwd"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// pwd may print a symlink-resolved variant of tmpDir on some systems,
	// so just check it is non-empty and the command succeeded.
	if !result.OK() || result.Stdout == "" {
		t.Errorf("Expected pwd output in %q, got %q (exit %d)", tmpDir, result.Stdout, result.ExitCode)
	}
}

func TestRun_EmptyCommand(t *testing.T) {
	if _, err := Run(context.Background(), ExecOptions{}, nil); err == nil {
		t.Error("Expected error for empty argv")
	}
}

func TestRun_MissingBinary(t *testing.T) {
	if _, err := Run(context.Background(), ExecOptions{}, []string{"no-such-binary-anywhere"}); err == nil {
		t.Error("Expected error for unstartable command")
	}
}

func TestFormatCommand(t *testing.T) {
	got := FormatCommand([]string{"git", "commit", "-m", "my message"})
	expected := "git commit -m 'my message'"
	if got != expected {
		t.Errorf("FormatCommand = %q, expected %q", got, expected)
	}

	if got := FormatCommand(nil); got != "<empty command>" {
		t.Errorf("FormatCommand(nil) = %q", got)
	}
}
