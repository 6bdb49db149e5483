// Package tiles implements the tiles command for checking hands offline.
package tiles

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/handscan/handscan/internal/tiles"
)

// ErrInvalidHand is returned by the validate subcommand when the hand has
// violations.
var ErrInvalidHand = errors.New("hand is invalid")

// Command creates the tiles command and its subcommands.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tiles",
		Short: "Inspect the tile taxonomy and validate hands",
	}
	cmd.AddCommand(listCommand(), validateCommand())
	return cmd
}

func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every tile code with its kind and copy limit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, code := range tiles.All() {
				kind, _ := tiles.KindOf(code)
				fmt.Fprintf(out, "%-3s %-7s %d\n", code, kind, tiles.MaxCount(code))
			}
			return nil
		},
	}
}

func validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "validate CODE...",
		Short:   "Validate a hand given as tile codes",
		Example: "  handscan tiles validate 1B 1B 2B EW RD 1F",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codes := make([]string, 0, len(args))
			for _, a := range args {
				// Accept "1B,2B" as well as separate arguments.
				for _, c := range strings.Split(a, ",") {
					if c = strings.TrimSpace(c); c != "" {
						codes = append(codes, strings.ToUpper(c))
					}
				}
			}

			violations := tiles.Validate(codes)
			out := cmd.OutOrStdout()
			if len(violations) == 0 {
				fmt.Fprintf(out, "valid hand (%d tiles)\n", len(codes))
				return nil
			}
			for _, v := range violations {
				fmt.Fprintln(out, v)
			}
			return ErrInvalidHand
		},
	}
}
