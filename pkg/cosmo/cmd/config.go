package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/buildcosmo/cosmo-cli/pkg/cosmo/config"
	"github.com/buildcosmo/cosmo-cli/pkg/cosmo/output"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage cosmo settings",
	}
	cmd.AddCommand(
		newConfigInitCommand(),
		newConfigViewCommand(),
		newConfigPathCommand(),
	)
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a settings file with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if !force {
				if _, err := os.Stat(rt.configPath); err == nil {
					return fmt.Errorf("settings file already exists: %s", rt.configPath)
				}
			}
			cfg := config.DefaultConfig()
			if err := config.Save(rt.configPath, &cfg); err != nil {
				return err
			}
			rt.Printer().Success("Settings written to %s", rt.configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing settings file")
	return cmd
}

func newConfigViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			format, err := rt.OutputFormat()
			if err != nil {
				return err
			}
			if format == output.FormatTable {
				format = output.FormatYAML
			}
			return output.WriteObject(rt.Writer(), format, rt.cfg)
		},
	}
}

type configPaths struct {
	Settings string `json:"settings" yaml:"settings"`
	Token    string `json:"token" yaml:"token"`
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the settings and token locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			format, err := rt.OutputFormat()
			if err != nil {
				return err
			}
			paths := configPaths{Settings: rt.configPath, Token: rt.tokenPath}
			if format != output.FormatTable {
				return output.WriteObject(rt.Writer(), format, paths)
			}
			output.WriteKeyValues(rt.Writer(), []output.KeyValue{
				{Key: "Settings", Value: paths.Settings},
				{Key: "Token", Value: paths.Token},
			})
			return nil
		},
	}
}
