package commands

import (
	"fmt"
	"os"

	"github.com/penwyp/go-tracker-monitor/internal/config"
	"github.com/penwyp/go-tracker-monitor/internal/util"
	"github.com/spf13/cobra"
)

func newConfigCommand(opts *options) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long: `Prints the configuration after defaults, the config file, TRACKER_*
environment variables and flags have been applied, in that order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile, cmd.Flags())
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// the target file may not exist yet
			source := opts.configFile
			if _, err := os.Stat(util.ExpandPath(source)); source != "" && os.IsNotExist(err) {
				source = ""
			}
			cfg, err := config.Load(source, cmd.Flags())
			if err != nil {
				return err
			}
			path := opts.configFile
			if path == "" {
				path = config.DefaultPath()
			}
			if err := cfg.Write(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false,
		"Overwrite an existing config file")

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the config file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile, cmd.Flags())
			if err != nil {
				return err
			}
			if cfg.File == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (not found, using defaults)\n", config.DefaultPath())
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.File)
			return nil
		},
	}

	configCmd.AddCommand(initCmd, pathCmd)
	return configCmd
}
