package cli

import (
	"github.com/spf13/cobra"

	"neuroglitch/pkg/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <path>",
		Short: "Write a default configuration file (YAML, or TOML for .toml paths)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.CreateDefaultConfigFile(args[0]); err != nil {
				return err
			}
			loggerFromContext(cmd.Context()).Info("wrote default config", "path", args[0])
			return nil
		},
	}
}
