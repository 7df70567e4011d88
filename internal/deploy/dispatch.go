package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/isotopp/deploy/internal/history"
	"github.com/isotopp/deploy/internal/site"
	"github.com/isotopp/deploy/internal/store"
)

// ErrUnknownOperation is returned when no handler exists for a
// variant/operation pair.
var ErrUnknownOperation = fmt.Errorf("unknown operation")

// RecentLogsLimit is how many history entries the logs operation prints.
const RecentLogsLimit = 10

// Handler performs one operation for one parsed config.
type Handler func(ctx context.Context, cfg site.Config) error

// Dispatcher routes a parsed config to the matching variant handler.
// The capability table is keyed by (variant, operation) and pre-filled
// with a shared no-op handler for everything a variant does not
// customize, so unhandled operations still succeed the way a stub
// deployer would.
type Dispatcher struct {
	Store   *store.Store
	Pipe    *Pipeline
	History *history.History // optional
	Out     io.Writer
	Logger  *slog.Logger

	table map[site.Type]map[site.Operation]Handler
}

// NewDispatcher builds the dispatcher and its capability table.
func NewDispatcher(st *store.Store, pipe *Pipeline, hist *history.History, out io.Writer, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		Store:   st,
		Pipe:    pipe,
		History: hist,
		Out:     out,
		Logger:  logger,
	}
	d.table = d.buildTable()
	return d
}

// Dispatch looks up and invokes the handler for the config's variant and
// operation. Bare configs (no variant tag) cover the administrative
// operations that work off the stored descriptor alone.
func (d *Dispatcher) Dispatch(ctx context.Context, cfg site.Config) error {
	opts := cfg.Common()

	if kind := cfg.Kind(); kind != "" {
		ops, ok := d.table[kind]
		if !ok {
			return fmt.Errorf("%w: no handlers for site type %q", ErrUnknownOperation, kind)
		}
		handler, ok := ops[opts.Operation]
		if !ok {
			return fmt.Errorf("%w: %s for site type %q", ErrUnknownOperation, opts.Operation, kind)
		}
		return handler(ctx, cfg)
	}

	switch opts.Operation {
	case site.OpShow:
		if opts.Project == "projects" {
			return d.showAll()
		}
		return d.showOne(opts.Project)

	case site.OpCode:
		return d.Pipe.Deploy(ctx, opts.Project, time.Duration(opts.Timeout)*time.Second)

	case site.OpDelete:
		if opts.DryRun {
			fmt.Fprintf(d.Out, "[dry-run] would delete project: %s\n", opts.Project)
			return nil
		}
		if err := d.Store.Delete(opts.Project); err != nil {
			return err
		}
		fmt.Fprintf(d.Out, "[-] Deleted project: %s\n", opts.Project)
		return nil

	case site.OpLogs:
		return d.showLogs(ctx, opts.Project)
	}

	return fmt.Errorf("%w: %s without a site type", ErrUnknownOperation, opts.Operation)
}

// showOne prints the stored descriptor for a single project.
func (d *Dispatcher) showOne(project string) error {
	desc, err := d.Store.Load(project)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render descriptor for %s: %w", project, err)
	}

	fmt.Fprintf(d.Out, "[-] Showing project: %s\n%s\n", project, data)
	return nil
}

// showAll reports every stored project.
func (d *Dispatcher) showAll() error {
	names, err := d.Store.List()
	if err != nil {
		return err
	}

	fmt.Fprintf(d.Out, "[-] Showing all projects (%d)\n", len(names))
	for _, name := range names {
		fmt.Fprintf(d.Out, "    - %s\n", name)
	}
	return nil
}

// showLogs prints the recent deploy history of a project.
func (d *Dispatcher) showLogs(ctx context.Context, project string) error {
	if _, err := d.Store.Load(project); err != nil {
		return err
	}

	if d.History == nil {
		fmt.Fprintf(d.Out, "[-] No history database configured\n")
		return nil
	}

	records, err := d.History.Recent(ctx, project, RecentLogsLimit)
	if err != nil {
		return err
	}

	fmt.Fprintf(d.Out, "[-] Recent deploys for %s (%d)\n", project, len(records))
	for _, r := range records {
		line := fmt.Sprintf("    %s  %-16s  %.1fs", r.StartedAt.Format(time.RFC3339), r.Status, r.DurationSeconds)
		if r.ErrorMessage != nil {
			line += "  " + *r.ErrorMessage
		}
		fmt.Fprintln(d.Out, line)
	}
	return nil
}
