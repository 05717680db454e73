package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/buildcosmo/cosmo-cli/pkg/cosmo/output"
	"github.com/buildcosmo/cosmo-cli/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show cosmo version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.GetBuildInfo()

			// Get runtime if available (for custom writer), but don't fail if missing
			rt, _ := getRuntime(cmd)
			writer := cmd.OutOrStdout()
			format := output.FormatTable
			if rt != nil {
				writer = rt.Writer()
				f, err := rt.OutputFormat()
				if err != nil {
					return err
				}
				format = f
			}
			if format != output.FormatTable {
				return output.WriteObject(writer, format, info)
			}
			_, _ = fmt.Fprintf(writer, "cosmo %s (commit: %s, built: %s, %s)\n", info.Version, info.GitCommit, info.BuildDate, info.Platform)
			return nil
		},
	}
}
