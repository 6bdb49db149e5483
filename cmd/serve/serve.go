// Package serve implements the serve command.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/handscan/handscan/internal/app"
	"github.com/handscan/handscan/internal/buildinfo"
	"github.com/handscan/handscan/internal/conf"
)

// Command creates the serve command.
func Command(build *buildinfo.Context) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: "Run the HTTP API. With server.embeddedworker set, the detection " +
			"queue runs in the same process.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, conf.Setting(), build, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", true, "Migrate the database schema before serving")

	return cmd
}

func run(ctx context.Context, settings *conf.Settings, build *buildinfo.Context, migrate bool) error {
	a, err := app.New(settings, build)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if migrate {
		if err := a.DB.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if settings.Server.EmbeddedWorker {
		w, err := a.NewWorker()
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	server, err := a.NewServer()
	if err != nil {
		return err
	}
	g.Go(func() error { return server.Run(gctx) })

	return g.Wait()
}
