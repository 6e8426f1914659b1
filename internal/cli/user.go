package cli

import (
	"fmt"

	"github.com/rpattn/auditdesk/internal/users"
	"github.com/spf13/cobra"
)

// NewUserCommand creates the user command group.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts from the command line",
	}
	cmd.AddCommand(newBootstrapCommand(rootOpts))
	cmd.AddCommand(newPurgeSessionsCommand(rootOpts))
	return cmd
}

func newBootstrapCommand(rootOpts *RootOptions) *cobra.Command {
	var in users.NewUser

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the first super admin on an empty database",
		Long: `Create the first super admin. Fails once any account exists.

Example:
  auditctl user bootstrap --email ops@example.com --password s3cret --name "Ops"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := rootOpts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			svc := users.NewService(store, users.WithLogger(rootOpts.Logger), users.WithBcryptCost(rootOpts.Config.Auth.BcryptCost))
			profile, err := svc.Bootstrap(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created super admin %s (%s)\n", profile.Email, profile.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&in.Password, "password", "", "account password (required)")
	cmd.Flags().StringVar(&in.FullName, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newPurgeSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-sessions",
		Short: "Delete expired login sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := rootOpts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			n, err := users.NewService(store, users.WithLogger(rootOpts.Logger)).PurgeExpiredSessions(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired sessions\n", n)
			return nil
		},
	}
}
