package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/buildcosmo/cosmo-cli/pkg/cosmo/auth"
	"github.com/buildcosmo/cosmo-cli/pkg/cosmo/output"
)

func NewLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in through the browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			session, err := rt.Session()
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			printer := rt.Printer()
			printer.Step("Opening browser for authentication...")
			if _, err := session.Reauthenticate(cmd.Context()); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			printer.Success("Login successful!")
			printer.Detail(`You can now publish widgets with "cosmo publish"`)
			return nil
		},
	}
}

func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.TokenManager().DeleteToken(); err != nil {
				return fmt.Errorf("logout failed: %w", err)
			}
			rt.Printer().Success("Logged out successfully")
			return nil
		},
	}
}

type authStatus struct {
	Storage   string    `json:"storage" yaml:"storage"`
	LoggedIn  bool      `json:"loggedIn" yaml:"loggedIn"`
	Expired   bool      `json:"expired" yaml:"expired"`
	Identity  string    `json:"identity,omitempty" yaml:"identity,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
}

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored login",
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
			manager := rt.TokenManager()
			token, found, err := manager.GetToken()
			if err != nil {
				return err
			}
			status := authStatus{Storage: manager.Location(), LoggedIn: found}
			if found {
				status.Expired = auth.IsTokenExpired(token, time.Now())
				if claims, err := auth.ParseClaims(token); err == nil {
					status.Identity = claims.Identity()
					if exp := claims.Expiry(); !exp.IsZero() {
						status.ExpiresAt = &exp
					}
				}
			}

			if format != output.FormatTable {
				return output.WriteObject(rt.Writer(), format, status)
			}
			expires := "-"
			if status.ExpiresAt != nil {
				expires = output.FormatTime(*status.ExpiresAt)
			}
			state := "not logged in"
			switch {
			case found && status.Expired:
				state = "expired"
			case found:
				state = "logged in"
			}
			output.WriteKeyValues(rt.Writer(), []output.KeyValue{
				{Key: "Status", Value: state},
				{Key: "Identity", Value: status.Identity},
				{Key: "Expires", Value: expires},
				{Key: "Storage", Value: status.Storage},
			})
			return nil
		},
	}
}
