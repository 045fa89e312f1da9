package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/zotoksheets/internal/domain/port/driving"
)

func newCredentialsCommand(app App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage the stored Zotok credentials",
	}

	var req driving.CredentialsRequest
	set := &cobra.Command{
		Use:   "set",
		Short: "Store a credential set",
		Long: `Store a workspace ID, client ID and client secret. The secret may be
given with --client-secret or the ZOTOK_CLIENT_SECRET environment variable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.ClientSecret == "" {
				req.ClientSecret = os.Getenv("ZOTOK_CLIENT_SECRET")
			}
			core, err := app.Core()
			if err != nil {
				return err
			}
			resp := core.StoreCredentials(cmd.Context(), req)
			return printResult(cmd, resp.Success, resp)
		},
	}
	set.Flags().StringVar(&req.WorkspaceID, "workspace", "", "workspace ID")
	set.Flags().StringVar(&req.ClientID, "client-id", "", "client ID")
	set.Flags().StringVar(&req.ClientSecret, "client-secret", "", "client secret")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove credentials, the cached token and all caches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := app.Core()
			if err != nil {
				return err
			}
			env := core.ClearCredentials(cmd.Context())
			return printResult(cmd, env.Success, env)
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show stored credential metadata and token state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := app.Core()
			if err != nil {
				return err
			}
			resp := core.CredentialStatus(cmd.Context())
			return printResult(cmd, resp.Success, resp)
		},
	}

	cmd.AddCommand(set, clearCmd, status)
	return cmd
}

func newTokenCommand(app App) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a usable bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := app.Core()
			if err != nil {
				return err
			}
			resp := core.GetToken(cmd.Context(), force)
			return printResult(cmd, resp.Success, resp)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "mint a new token even if a cached one is usable")
	return cmd
}

func newValidateCommand(app App) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Confirm the stored credentials against the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := app.Core()
			if err != nil {
				return err
			}
			res := core.AuthenticateForUserAction(cmd.Context())
			if res.Success {
				fmt.Fprintln(cmd.ErrOrStderr(), "credentials valid")
			}
			return printResult(cmd, res.Success, res)
		},
	}
}
