package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/handscan/handscan/cmd/config"
	"github.com/handscan/handscan/cmd/migrate"
	"github.com/handscan/handscan/cmd/serve"
	"github.com/handscan/handscan/cmd/tiles"
	"github.com/handscan/handscan/cmd/worker"
	"github.com/handscan/handscan/internal/buildinfo"
	"github.com/handscan/handscan/internal/conf"
)

// skipSettings marks commands that run without loading config.yaml.
const skipSettings = "skip-settings"

// RootCommand creates and returns the root command
func RootCommand(build *buildinfo.Context) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "handscan",
		Short:         "Mahjong hand photo tile detection service",
		Version:       build.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	if err := bindFlags(rootCmd.PersistentFlags(), map[string]string{"debug": "debug"}); err != nil {
		panic(err)
	}

	tilesCmd := tiles.Command()
	tilesCmd.Annotations = map[string]string{skipSettings: "true"}

	rootCmd.AddCommand(
		serve.Command(build),
		worker.Command(build),
		migrate.Command(),
		config.Command(),
		tilesCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		for c := cmd; c != nil; c = c.Parent() {
			if c.Annotations[skipSettings] != "" {
				return nil
			}
		}
		if _, err := conf.Load(configFile); err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		return nil
	}

	return rootCmd
}

// bindFlags binds flags to viper keys so command line values take
// precedence over config.yaml and environment variables.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) error {
	for flag, key := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
