// Package migrate implements the migrate command.
package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/handscan/handscan/internal/app"
	"github.com/handscan/handscan/internal/conf"
	"github.com/handscan/handscan/internal/datastore"
)

// Command creates the migrate command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := conf.Setting()

			central, err := app.SetupLogging(settings)
			if err != nil {
				return err
			}
			defer func() { _ = central.Close() }()

			db, err := datastore.Open(&settings.Database, central.Module("datastore"))
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database schema is up to date (%s)\n", settings.Database.Driver)
			return nil
		},
	}
}
