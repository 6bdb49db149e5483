// Package config implements the config command.
package config

import (
	"github.com/spf13/cobra"

	"github.com/handscan/handscan/internal/conf"
)

// Command creates the config command, which prints the effective settings
// as YAML with secrets masked.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := conf.RenderYAML(conf.Setting())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
