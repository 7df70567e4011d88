package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/isotopp/deploy/internal/store"
	"github.com/isotopp/deploy/pkg/cmdutil"
)

// fakeUsers is a user database containing a fixed set of names.
type fakeUsers map[string]bool

func (f fakeUsers) Lookup(name string) error {
	if !f[name] {
		return fmt.Errorf("user %s does not exist", name)
	}
	return nil
}

// fakeRunner records every invocation and replays scripted results.
type fakeRunner struct {
	calls   [][]string
	dirs    []string
	results []*cmdutil.Result
	errs    []error
}

func (r *fakeRunner) Run(ctx context.Context, argv []string, dir string, timeout time.Duration) (*cmdutil.Result, error) {
	i := len(r.calls)
	r.calls = append(r.calls, argv)
	r.dirs = append(r.dirs, dir)

	var err error
	if i < len(r.errs) {
		err = r.errs[i]
	}
	result := &cmdutil.Result{}
	if i < len(r.results) {
		result = r.results[i]
	}
	return result, err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	return store.NewWithLookup(t.TempDir(), "snackbag.net", fakeUsers{"blog": true})
}

func storeDescriptor(t *testing.T, s *store.Store, project string) {
	t.Helper()
	err := s.Create(project, store.Descriptor{
		Hostname:    project + ".snackbag.net",
		Unixuser:    "blog",
		ProjectDir:  t.TempDir(),
		CheckoutCmd: "git pull --ff-only",
		RestartCmd:  "systemctl restart blog",
	})
	if err != nil {
		t.Fatalf("Failed to store descriptor: %v", err)
	}
}

func TestPipeline_Success(t *testing.T) {
	s := newTestStore(t)
	storeDescriptor(t, s, "blog")

	runner := &fakeRunner{
		results: []*cmdutil.Result{
			{Stdout: "Already up to date.\n", ExitCode: 0},
			{Stdout: "restarted\n", ExitCode: 0},
		},
	}
	var out bytes.Buffer
	p := NewPipeline(s, runner, &out, testLogger())

	if err := p.Deploy(context.Background(), "blog", 30*time.Second); err != nil {
		t.Fatalf("Deploy returned error: %v", err)
	}

	if len(runner.calls) != 2 {
		t.Fatalf("Expected 2 commands, got %d: %v", len(runner.calls), runner.calls)
	}

	// Checkout runs first, impersonating the descriptor's unix user.
	checkout := runner.calls[0]
	if checkout[0] != "sudo" || checkout[1] != "-u" || checkout[2] != "blog" {
		t.Errorf("Checkout argv = %v, expected sudo -u blog prefix", checkout)
	}
	if checkout[len(checkout)-1] != "git pull --ff-only" {
		t.Errorf("Checkout command = %q", checkout[len(checkout)-1])
	}

	// Restart runs second, without impersonation.
	restart := runner.calls[1]
	if restart[0] != "/bin/sh" {
		t.Errorf("Restart argv = %v, expected plain shell invocation", restart)
	}

	text := out.String()
	first := strings.Index(text, "SUCCESS: checkout")
	second := strings.Index(text, "SUCCESS: restart")
	if first == -1 || second == -1 || second < first {
		t.Errorf("Expected two SUCCESS banners in checkout-then-restart order:\n%s", text)
	}
	if !strings.Contains(text, "Already up to date.") || !strings.Contains(text, "restarted") {
		t.Errorf("Captured output missing from banners:\n%s", text)
	}
}

func TestPipeline_CheckoutFailureSkipsRestart(t *testing.T) {
	s := newTestStore(t)
	storeDescriptor(t, s, "blog")

	runner := &fakeRunner{
		results: []*cmdutil.Result{
			{Stderr: "fatal: not a git repository\n", ExitCode: 1},
		},
	}
	var out bytes.Buffer
	p := NewPipeline(s, runner, &out, testLogger())

	if err := p.Deploy(context.Background(), "blog", 30*time.Second); err != nil {
		t.Fatalf("Checkout failure must not fail the invocation, got: %v", err)
	}

	if len(runner.calls) != 1 {
		t.Fatalf("Restart must never run after a failed checkout, got %d calls", len(runner.calls))
	}

	text := out.String()
	if !strings.Contains(text, "ERROR: checkout") {
		t.Errorf("Expected checkout ERROR banner:\n%s", text)
	}
	if !strings.Contains(text, "aborted") || !strings.Contains(text, "restart skipped") {
		t.Errorf("Expected explicit abort notice:\n%s", text)
	}
	if !strings.Contains(text, "fatal: not a git repository") {
		t.Errorf("Captured stderr missing from banner:\n%s", text)
	}
}

func TestPipeline_TimeoutBehavesLikeFailure(t *testing.T) {
	s := newTestStore(t)
	storeDescriptor(t, s, "blog")

	runner := &fakeRunner{
		results: []*cmdutil.Result{
			{TimedOut: true, ExitCode: -1, Duration: 30 * time.Second},
		},
	}
	var out bytes.Buffer
	p := NewPipeline(s, runner, &out, testLogger())

	if err := p.Deploy(context.Background(), "blog", 30*time.Second); err != nil {
		t.Fatalf("Timeout must not fail the invocation, got: %v", err)
	}

	if len(runner.calls) != 1 {
		t.Fatalf("Restart must never run after a timed-out checkout, got %d calls", len(runner.calls))
	}

	text := out.String()
	if !strings.Contains(text, "timeout") {
		t.Errorf("Expected timeout to be reported:\n%s", text)
	}
	if !strings.Contains(text, "aborted") {
		t.Errorf("Timeout must produce the same abort notice as a non-zero exit:\n%s", text)
	}
}

func TestPipeline_RestartFailureReportedNotFatal(t *testing.T) {
	s := newTestStore(t)
	storeDescriptor(t, s, "blog")

	runner := &fakeRunner{
		results: []*cmdutil.Result{
			{Stdout: "ok\n", ExitCode: 0},
			{Stderr: "unit not found\n", ExitCode: 5},
		},
	}
	var out bytes.Buffer
	p := NewPipeline(s, runner, &out, testLogger())

	if err := p.Deploy(context.Background(), "blog", 30*time.Second); err != nil {
		t.Fatalf("Restart failure must not fail the invocation, got: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "SUCCESS: checkout") {
		t.Errorf("Checkout success must stand despite restart failure:\n%s", text)
	}
	if !strings.Contains(text, "ERROR: restart") {
		t.Errorf("Expected restart ERROR banner:\n%s", text)
	}
	if strings.Contains(text, "aborted") {
		t.Errorf("Restart failure must not produce the abort notice:\n%s", text)
	}
}

func TestPipeline_MissingDescriptorRunsNothing(t *testing.T) {
	s := newTestStore(t)

	runner := &fakeRunner{}
	var out bytes.Buffer
	p := NewPipeline(s, runner, &out, testLogger())

	err := p.Deploy(context.Background(), "ghost", 30*time.Second)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Deploy = %v, expected ErrNotFound", err)
	}

	if len(runner.calls) != 0 {
		t.Errorf("No command may run when the descriptor is missing, got %v", runner.calls)
	}
}

func TestPipeline_DryRun(t *testing.T) {
	s := newTestStore(t)
	storeDescriptor(t, s, "blog")

	runner := &fakeRunner{}
	var out bytes.Buffer
	p := NewPipeline(s, runner, &out, testLogger())
	p.DryRun = true

	if err := p.Deploy(context.Background(), "blog", 30*time.Second); err != nil {
		t.Fatalf("Deploy returned error: %v", err)
	}

	if len(runner.calls) != 0 {
		t.Errorf("Dry run must not execute commands, got %v", runner.calls)
	}
	if !strings.Contains(out.String(), "[dry-run]") {
		t.Errorf("Expected dry-run output:\n%s", out.String())
	}
}

func TestPipeline_CommandsRunInProjectDir(t *testing.T) {
	s := newTestStore(t)
	projectDir := t.TempDir()
	err := s.Create("blog", store.Descriptor{
		Hostname:   "blog.snackbag.net",
		Unixuser:   "blog",
		ProjectDir: projectDir,
	})
	if err != nil {
		t.Fatalf("Failed to store descriptor: %v", err)
	}

	runner := &fakeRunner{
		results: []*cmdutil.Result{{ExitCode: 0}, {ExitCode: 0}},
	}
	p := NewPipeline(s, runner, &bytes.Buffer{}, testLogger())

	if err := p.Deploy(context.Background(), "blog", 30*time.Second); err != nil {
		t.Fatalf("Deploy returned error: %v", err)
	}

	for i, dir := range runner.dirs {
		if dir != projectDir {
			t.Errorf("Command %d ran in %q, expected %q", i, dir, projectDir)
		}
	}
}
