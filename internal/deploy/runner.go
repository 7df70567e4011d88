package deploy

import (
	"context"
	"time"

	"github.com/isotopp/deploy/pkg/cmdutil"
)

// Runner executes one external command in a working directory, bounded
// by a timeout. The pipeline talks to the host only through this
// interface, so tests can substitute a recording fake.
type Runner interface {
	Run(ctx context.Context, argv []string, dir string, timeout time.Duration) (*cmdutil.Result, error)
}

// ExecRunner runs commands on the real host.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, argv []string, dir string, timeout time.Duration) (*cmdutil.Result, error) {
	return cmdutil.Run(ctx, cmdutil.ExecOptions{Dir: dir, Timeout: timeout}, argv)
}
