// Package publish runs the widget publishing pipeline: build, package,
// authenticate, request an upload URL, upload and clean up.
package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/buildcosmo/cosmo-cli/pkg/cosmo/auth"
	"github.com/buildcosmo/cosmo-cli/pkg/cosmo/client"
	"github.com/buildcosmo/cosmo-cli/pkg/cosmo/output"
	"github.com/buildcosmo/cosmo-cli/pkg/cosmo/widget"
)

// Uploader is the part of the API client the pipeline needs.
type Uploader interface {
	RequestUploadURL(ctx context.Context, params client.UploadURLParams) (string, error)
	Upload(ctx context.Context, uploadURL, archivePath string) error
}

// BuildFunc runs the project's build in dir.
type BuildFunc func(ctx context.Context, dir string) error

type Publisher struct {
	Build   BuildFunc
	Session *auth.Session
	Client  Uploader
	Printer *output.Printer
	Log     *zap.SugaredLogger
}

type Options struct {
	// Dir is the project directory. Empty means the working directory.
	Dir       string
	SkipBuild bool
	// DryRun stops after the archive is written and keeps it.
	DryRun bool
}

type Result struct {
	Manifest    widget.Manifest `json:"manifest" yaml:"manifest"`
	ArchivePath string          `json:"archivePath" yaml:"archivePath"`
	Uploaded    bool            `json:"uploaded" yaml:"uploaded"`
	LoggedIn    bool            `json:"loggedIn" yaml:"loggedIn"`
	Reauthed    bool            `json:"reauthenticated" yaml:"reauthenticated"`
}

// Publish runs every step in order and stops at the first failure. The only
// retry is a single re-authentication when the upload URL request gets a 401.
func (p *Publisher) Publish(ctx context.Context, opts Options) (*Result, error) {
	printer := p.Printer
	if printer == nil {
		printer = output.NewPrinter(nil)
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}

	if !opts.SkipBuild {
		if p.Build == nil {
			return nil, errors.New("build step is not configured")
		}
		printer.Step("Building widget...")
		if err := p.Build(ctx, dir); err != nil {
			return nil, err
		}
	}

	manifest, err := widget.LoadManifest(dir, log)
	if err != nil {
		return nil, err
	}
	distPath, err := widget.RequireDist(dir)
	if err != nil {
		return nil, err
	}

	printer.Step("Packaging widget: %s v%s", manifest.ID, manifest.Version)
	archivePath := filepath.Join(dir, manifest.ArchiveName())
	if err := widget.CreateZip(distPath, archivePath); err != nil {
		return nil, err
	}
	result := &Result{Manifest: *manifest, ArchivePath: archivePath}
	log.Debugw("Archive created", "path", archivePath)

	if opts.DryRun {
		printer.Success("Dry run complete, archive kept at %s", archivePath)
		return result, nil
	}
	if p.Session == nil || p.Client == nil {
		return nil, errors.New("publisher is not configured")
	}

	printer.Step("Requesting upload URL...")
	if err := p.ensureSession(ctx, printer, result); err != nil {
		return nil, err
	}

	params := client.UploadURLParams{
		WidgetID:    manifest.ID,
		Version:     manifest.Version,
		Name:        manifest.Name,
		Description: manifest.Description,
	}
	uploadURL, err := p.Client.RequestUploadURL(ctx, params)
	if client.IsUnauthorized(err) {
		printer.Warn("Session expired. Re-authenticating...")
		if _, err := p.Session.Reauthenticate(ctx); err != nil {
			return nil, err
		}
		result.Reauthed = true
		printer.Success("Login successful! Retrying publish...")
		uploadURL, err = p.Client.RequestUploadURL(ctx, params)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload URL: %w", err)
	}

	printer.Step("Uploading widget...")
	if err := p.Client.Upload(ctx, uploadURL, archivePath); err != nil {
		return nil, err
	}
	result.Uploaded = true

	if err := os.Remove(archivePath); err != nil {
		log.Warnw("Failed to remove archive", "path", archivePath, "error", err)
	}

	printer.Success("Widget published successfully!")
	printer.Detail("Widget ID: %s", manifest.ID)
	printer.Detail("Version: %s", manifest.Version)
	return result, nil
}

func (p *Publisher) ensureSession(ctx context.Context, printer *output.Printer, result *Result) error {
	_, ok, err := p.Session.Current()
	if err != nil || ok {
		return err
	}
	printer.Warn("Not authenticated or session expired. Starting login flow...")
	if _, err := p.Session.Reauthenticate(ctx); err != nil {
		return err
	}
	result.LoggedIn = true
	printer.Success("Login successful!")
	return nil
}
