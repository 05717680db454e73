package cmd

import (
	"context"
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/buildcosmo/cosmo-cli/pkg/cosmo/client"
	"github.com/buildcosmo/cosmo-cli/pkg/cosmo/output"
	"github.com/buildcosmo/cosmo-cli/pkg/cosmo/publish"
	"github.com/buildcosmo/cosmo-cli/pkg/cosmo/widget"
	"github.com/buildcosmo/cosmo-cli/pkg/version"
)

func NewPublishCommand() *cobra.Command {
	var (
		dir          string
		skipBuild    bool
		buildCommand string
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Build, package and upload the widget",
		Long: heredoc.Doc(`
			Build the widget, zip its dist directory and upload the archive.

			The widget ID is the last segment of the package.json name and the
			version comes from widget.config.json, falling back to package.json.
			If no valid token is stored the browser login runs first. A 401 from
			the API triggers one re-authentication and one retry.
		`),
		Example: heredoc.Doc(`
			cosmo publish
			cosmo publish --dir ./my-widget --build-command "pnpm build"
			cosmo publish --skip-build --dry-run
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			result, err := runPublish(cmd.Context(), rt, publish.Options{
				Dir:       dir,
				SkipBuild: skipBuild,
				DryRun:    dryRun,
			}, buildCommand)
			if err != nil {
				return fmt.Errorf("publishing failed: %w", err)
			}
			format, err := rt.OutputFormat()
			if err != nil {
				return err
			}
			if format == output.FormatTable {
				return nil
			}
			return output.WriteObject(rt.Writer(), format, result)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Widget project directory (default: current directory)")
	cmd.Flags().BoolVar(&skipBuild, "skip-build", false, "Package the existing dist directory without building")
	cmd.Flags().StringVar(&buildCommand, "build-command", "", "Build command (default from settings: npm run build)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Stop after packaging and keep the archive")

	return cmd
}

func runPublish(ctx context.Context, rt *runtimeState, opts publish.Options, buildCommand string) (*publish.Result, error) {
	if _, err := rt.OutputFormat(); err != nil {
		return nil, err
	}
	if buildCommand == "" {
		buildCommand = rt.cfg.BuildCommand
	}
	timeout, err := rt.cfg.HTTPTimeout()
	if err != nil {
		return nil, err
	}
	session, err := rt.Session()
	if err != nil {
		return nil, err
	}
	api, err := client.New(
		client.WithUploadEndpoint(rt.cfg.UploadEndpoint),
		client.WithTokenSource(session),
		client.WithUserAgent(version.UserAgent()),
		client.WithTimeout(timeout),
		client.WithLogger(rt.Logger()),
	)
	if err != nil {
		return nil, err
	}

	printer := rt.Printer()
	publisher := &publish.Publisher{
		Build: func(ctx context.Context, dir string) error {
			return widget.RunBuild(ctx, buildCommand, dir, printer.Writer(), rt.ErrWriter())
		},
		Session: session,
		Client:  api,
		Printer: printer,
		Log:     rt.Logger(),
	}
	return publisher.Publish(ctx, opts)
}
