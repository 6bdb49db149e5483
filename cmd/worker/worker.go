// Package worker implements the worker command.
package worker

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/handscan/handscan/internal/app"
	"github.com/handscan/handscan/internal/buildinfo"
	"github.com/handscan/handscan/internal/conf"
)

// Command creates the worker command. The worker polls pending detections
// and sweeps stale runs without serving HTTP.
func Command(build *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the detection worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(conf.Setting(), build)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.Ping(ctx); err != nil {
				return err
			}

			w, err := a.NewWorker()
			if err != nil {
				return err
			}
			return w.Run(ctx)
		},
	}
}
