package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/isotopp/deploy/internal/site"
	"github.com/isotopp/deploy/internal/store"
)

// buildTable constructs the capability table. Every variant starts with
// the full operation set mapped to a shared no-op handler; variants then
// override the operations they actually implement, and code-deployable
// variants additionally get the code operation.
func (d *Dispatcher) buildTable() map[site.Type]map[site.Operation]Handler {
	table := make(map[site.Type]map[site.Operation]Handler, len(site.Types))

	for _, kind := range site.Types {
		table[kind] = d.defaultOps(kind)
	}

	table[site.TypeStatic][site.OpCreate] = d.createSourceSite("static site",
		func(cfg site.Config) (site.Source, string) {
			c := cfg.(*site.Static)
			return c.Source, c.Hostname
		})
	table[site.TypeWSGI][site.OpCreate] = d.createSourceSite("WSGI site",
		func(cfg site.Config) (site.Source, string) {
			c := cfg.(*site.WSGI)
			return c.Source, c.Hostname
		})
	table[site.TypeDiscord][site.OpCreate] = d.createSourceSite("Discord bot",
		func(cfg site.Config) (site.Source, string) {
			c := cfg.(*site.DiscordBot)
			// Bots have no vhost; the descriptor still needs a valid
			// hostname, so the default applies.
			return c.Source, ""
		})
	table[site.TypeCompiled][site.OpCreate] = d.createSourceSite("compiled site",
		func(cfg site.Config) (site.Source, string) {
			c := cfg.(*site.Compiled)
			return c.Source, c.Hostname
		})

	table[site.TypeRedirect][site.OpCreate] = d.createRedirect
	table[site.TypeProxy][site.OpCreate] = d.createProxy

	// Only variants that carry a source repository can deploy code.
	for _, kind := range []site.Type{site.TypeStatic, site.TypeWSGI, site.TypeDiscord, site.TypeCompiled} {
		table[kind][site.OpCode] = d.codeOp
		table[kind][site.OpDelete] = d.deleteOp
	}

	return table
}

// defaultOps pre-fills the full operation set with the no-op handler.
func (d *Dispatcher) defaultOps(kind site.Type) map[site.Operation]Handler {
	ops := make(map[site.Operation]Handler, len(site.Operations))
	for _, op := range []site.Operation{
		site.OpCreate, site.OpDelete, site.OpShow, site.OpStart,
		site.OpStop, site.OpRestart, site.OpUpdate, site.OpLogs,
	} {
		ops[op] = d.noop(kind, op)
	}
	return ops
}

// noop succeeds without doing anything, matching the stub deployers the
// variants grow out of.
func (d *Dispatcher) noop(kind site.Type, op site.Operation) Handler {
	return func(ctx context.Context, cfg site.Config) error {
		d.Logger.Debug("no-op operation", "type", kind, "operation", op, "project", cfg.Common().Project)
		return nil
	}
}

// createSourceSite builds the create handler for a variant that deploys
// code from a repository. The handler persists the descriptor and prints
// the provisioning steps.
func (d *Dispatcher) createSourceSite(label string, extract func(site.Config) (site.Source, string)) Handler {
	return func(ctx context.Context, cfg site.Config) error {
		opts := cfg.Common()
		src, hostname := extract(cfg)
		if hostname == "" {
			hostname = site.DefaultHostname(opts.Project, d.Store.Domain())
		}

		fmt.Fprintf(d.Out, "[+] Creating %s: %s\n", label, opts.Project)
		fmt.Fprintf(d.Out, "    - Cloning %s into %s\n", src.Repo, src.ProjectDir)
		fmt.Fprintf(d.Out, "    - Setting up Apache vhost for %s\n", hostname)

		if opts.DryRun {
			fmt.Fprintf(d.Out, "[dry-run] descriptor for %s not written\n", opts.Project)
			return nil
		}

		return d.Store.Create(opts.Project, store.Descriptor{
			Hostname:    hostname,
			Unixuser:    src.Username,
			ProjectDir:  src.ProjectDir,
			CheckoutCmd: src.CheckoutCmd,
			RestartCmd:  src.RestartCmd,
		})
	}
}

// createRedirect provisions a redirect vhost. Redirects carry no code,
// so nothing is persisted in the descriptor store.
func (d *Dispatcher) createRedirect(ctx context.Context, cfg site.Config) error {
	c := cfg.(*site.Redirect)
	fmt.Fprintf(d.Out, "[+] Creating redirect site: %s\n", c.Project)
	fmt.Fprintf(d.Out, "    - Redirecting %s to %s\n", c.Hostname, c.Target)
	return nil
}

// createProxy provisions a reverse proxy vhost. Proxies carry no code,
// so nothing is persisted in the descriptor store.
func (d *Dispatcher) createProxy(ctx context.Context, cfg site.Config) error {
	c := cfg.(*site.Proxy)
	fmt.Fprintf(d.Out, "[+] Creating proxy: %s\n", c.Project)
	fmt.Fprintf(d.Out, "    - Proxying %s to local port %d\n", c.Hostname, c.Port)
	return nil
}

// codeOp runs the deploy pipeline for a variant config.
func (d *Dispatcher) codeOp(ctx context.Context, cfg site.Config) error {
	opts := cfg.Common()
	return d.Pipe.Deploy(ctx, opts.Project, time.Duration(opts.Timeout)*time.Second)
}

// deleteOp removes the stored descriptor for a variant config.
func (d *Dispatcher) deleteOp(ctx context.Context, cfg site.Config) error {
	opts := cfg.Common()
	if opts.DryRun {
		fmt.Fprintf(d.Out, "[dry-run] would delete project: %s\n", opts.Project)
		return nil
	}
	if err := d.Store.Delete(opts.Project); err != nil {
		return err
	}
	fmt.Fprintf(d.Out, "[-] Deleted project: %s\n", opts.Project)
	return nil
}
