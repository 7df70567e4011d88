package deploy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/isotopp/deploy/internal/history"
	"github.com/isotopp/deploy/internal/store"
	"github.com/isotopp/deploy/pkg/cmdutil"
)

// Pipeline runs the code operation for a stored project: checkout the
// working copy as the project's unix user, then restart the serving
// process. A failed or timed-out checkout aborts the run before the
// restart command is ever built.
type Pipeline struct {
	Store   *store.Store
	Runner  Runner
	History *history.History // optional; nil disables recording
	Out     io.Writer
	Logger  *slog.Logger
	DryRun  bool
}

// NewPipeline creates a pipeline against the given store and runner.
func NewPipeline(st *store.Store, runner Runner, out io.Writer, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		Store:  st,
		Runner: runner,
		Out:    out,
		Logger: logger,
	}
}

// checkoutArgv builds the checkout invocation. The command string runs
// under a shell because operators store full pipelines in descriptors;
// the unix user travels as an argv element, never inside the string.
func checkoutArgv(d *store.Descriptor) []string {
	return []string{"sudo", "-u", d.Unixuser, "/bin/sh", "-c", d.CheckoutCmd}
}

// restartArgv builds the restart invocation. No impersonation: restart
// commands carry their own sudo where they need it.
func restartArgv(d *store.Descriptor) []string {
	return []string{"/bin/sh", "-c", d.RestartCmd}
}

// Deploy executes checkout-then-restart for a project. A missing
// descriptor is the only error that reaches the caller; command
// failures are reported on Out and recorded, then swallowed, so the
// process still exits zero.
func (p *Pipeline) Deploy(ctx context.Context, project string, timeout time.Duration) error {
	d, err := p.Store.Load(project)
	if err != nil {
		return err
	}

	checkout := checkoutArgv(d)
	restart := restartArgv(d)

	if p.DryRun {
		fmt.Fprintf(p.Out, "[dry-run] checkout: %s (in %s)\n", cmdutil.FormatCommand(checkout), d.ProjectDir)
		fmt.Fprintf(p.Out, "[dry-run] restart:  %s (in %s)\n", cmdutil.FormatCommand(restart), d.ProjectDir)
		return nil
	}

	p.Logger.Info("starting code deploy", "project", project, "dir", d.ProjectDir, "user", d.Unixuser)
	start := time.Now()

	record := &history.Record{Project: project, StartedAt: start}

	checkoutResult, err := p.Runner.Run(ctx, checkout, d.ProjectDir, timeout)
	p.report("checkout", checkout, checkoutResult, err)

	if err != nil || !checkoutResult.OK() {
		fmt.Fprintf(p.Out, "deploy of %s aborted: checkout failed, restart skipped, site left in pre-deploy state\n\n", project)
		p.Logger.Warn("checkout failed, aborting deploy", "project", project)

		record.Status = history.StatusCheckoutError
		record.ErrorMessage = strPtr(describeFailure("checkout", checkoutResult, err, timeout))
		if checkoutResult != nil && !checkoutResult.TimedOut && err == nil {
			record.CheckoutExit = intPtr(checkoutResult.ExitCode)
		}
		p.record(ctx, record, start)
		return nil
	}
	record.CheckoutExit = intPtr(checkoutResult.ExitCode)

	restartResult, err := p.Runner.Run(ctx, restart, d.ProjectDir, timeout)
	p.report("restart", restart, restartResult, err)

	if err != nil || !restartResult.OK() {
		p.Logger.Warn("restart failed after successful checkout", "project", project)
		record.Status = history.StatusRestartError
		record.ErrorMessage = strPtr(describeFailure("restart", restartResult, err, timeout))
		if restartResult != nil && !restartResult.TimedOut && err == nil {
			record.RestartExit = intPtr(restartResult.ExitCode)
		}
	} else {
		record.Status = history.StatusSuccess
		record.RestartExit = intPtr(restartResult.ExitCode)
		p.Logger.Info("code deploy finished", "project", project, "duration", time.Since(start))
	}

	p.record(ctx, record, start)
	return nil
}

// report prints the banner for one executed command: SUCCESS or ERROR,
// the raw captured stdout and stderr, then a blank line.
func (p *Pipeline) report(step string, argv []string, result *cmdutil.Result, err error) {
	switch {
	case err != nil:
		fmt.Fprintf(p.Out, "ERROR: %s: %s: %v\n", step, cmdutil.FormatCommand(argv), err)
	case result.TimedOut:
		fmt.Fprintf(p.Out, "ERROR: %s: %s (timeout after %s)\n", step, cmdutil.FormatCommand(argv), result.Duration.Round(time.Millisecond))
	case result.OK():
		fmt.Fprintf(p.Out, "SUCCESS: %s: %s\n", step, cmdutil.FormatCommand(argv))
	default:
		fmt.Fprintf(p.Out, "ERROR: %s: %s (exit %d)\n", step, cmdutil.FormatCommand(argv), result.ExitCode)
	}

	if result != nil {
		if result.Stdout != "" {
			fmt.Fprint(p.Out, result.Stdout)
		}
		if result.Stderr != "" {
			fmt.Fprint(p.Out, result.Stderr)
		}
	}
	fmt.Fprintln(p.Out)
}

func (p *Pipeline) record(ctx context.Context, record *history.Record, start time.Time) {
	if p.History == nil {
		return
	}
	record.DurationSeconds = time.Since(start).Seconds()
	if _, err := p.History.Append(ctx, record); err != nil {
		p.Logger.Error("failed to record deploy in history", "project", record.Project, "error", err)
	}
}

func describeFailure(step string, result *cmdutil.Result, err error, timeout time.Duration) string {
	switch {
	case err != nil:
		return fmt.Sprintf("%s could not run: %v", step, err)
	case result.TimedOut:
		return fmt.Sprintf("%s exceeded timeout of %s", step, timeout)
	default:
		return fmt.Sprintf("%s exited with code %d", step, result.ExitCode)
	}
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
