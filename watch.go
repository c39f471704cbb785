package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/phobologic/stepguide/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the step index current until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg, l, err := a.load(ctx)
			if err != nil {
				return err
			}

			w, err := watch.New(l, reg, a.logger)
			if err != nil {
				return err
			}
			w.OnChange = func(path string) {
				_, _ = fmt.Fprintf(a.stdout, "updated %s: %d steps indexed\n", path, reg.Len())
			}

			_, _ = fmt.Fprintf(a.stdout, "watching %s: %d steps indexed\n", a.root, reg.Len())
			return w.Run(ctx)
		},
	}
}
