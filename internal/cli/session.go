package cli

import (
	"context"
	"os"

	"github.com/aretw0/wflow"
	"github.com/aretw0/wflow/internal/presentation/tui"
	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/engine"
)

// RunFlow drives one interactive workflow session: discover, select, start,
// resolve and complete. An empty name prompts for the workflow.
func RunFlow(opts Options, name string, presets map[string]string, extra ...wflow.Option) error {
	if !opts.Quiet {
		tui.PrintBanner(os.Stdout)
	}
	return Submit(opts, wflow.WorkflowFlow(name, presets), extra...)
}

// Submit runs cmds in order in a fresh session.
func Submit(opts Options, cmds []engine.Command, extra ...wflow.Option) error {
	return WithSystem(opts, func(ctx context.Context, sys *wflow.System) error {
		wc := domain.NewWorkflowContext()
		if len(os.Args) > 1 {
			wc.CLIArgs = os.Args[1:]
		}
		err := sys.Run(ctx, wc, cmds...)
		if ctx.Err() != nil && err == nil {
			err = ctx.Err()
		}

		var sig os.Signal
		if sc, ok := ctx.(*SignalContext); ok {
			sig = sc.Signal()
		}
		logCompletion(wc.SessionID, err, opts.Quiet, sig)
		return err
	}, extra...)
}
