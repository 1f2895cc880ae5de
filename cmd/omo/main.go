package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"omomoney/internal/cli"
	applog "omomoney/internal/log"
)

const skipBackend = "skip-backend"

// runner holds state shared by every subcommand of one invocation.
type runner struct {
	app    *cli.App
	out    io.Writer
	ctx    context.Context
	cancel context.CancelFunc
}

// shutdown releases what the pre-run hook opened. It is safe to call more
// than once and when no backend was opened.
func (r *runner) shutdown() error {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	if r.app == nil {
		return nil
	}
	app := r.app
	r.app = nil
	return app.Close()
}

func newRootCmd(out io.Writer) (*cobra.Command, *runner) {
	r := &runner{out: out}

	root := &cobra.Command{
		Use:           "omo",
		Short:         "Personal finance ledger shared across home groups",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipBackend] == "true" {
				return nil
			}
			app, err := cli.Init(cmd.Context(), os.Stderr)
			if err != nil {
				return err
			}
			r.app = app
			ctx := applog.NewContext(cmd.Context(), app.Logger)
			r.ctx, r.cancel = cli.SignalContext(ctx, app.Logger)
			return nil
		},
	}

	root.AddCommand(
		r.groupsCmd(),
		r.entriesCmd(),
		r.itemsCmd(),
		r.viewCmd(),
		categoriesCmd(out),
		r.suggestCmd(),
		r.watchCmd(),
	)
	return root, r
}

func main() {
	root, r := newRootCmd(os.Stdout)
	err := root.ExecuteContext(context.Background())
	if cerr := r.shutdown(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
