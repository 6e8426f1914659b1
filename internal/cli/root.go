// Package cli implements the auditctl operator commands.
package cli

import (
	"context"
	"fmt"

	"github.com/rpattn/auditdesk/internal/auth"
	"github.com/rpattn/auditdesk/internal/config"
	"github.com/rpattn/auditdesk/internal/db"
	"github.com/rpattn/auditdesk/internal/logging"
	"github.com/rpattn/auditdesk/internal/repository"
	"github.com/rpattn/auditdesk/internal/users"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags and the state resolved from them before a subcommand runs.
type RootOptions struct {
	ConfigPath string
	LogLevel   string

	Config config.Config
	Logger *zap.Logger
}

// NewRootCommand creates the auditctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "auditctl",
		Short:         "Operator tooling for the facility audit backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			level := cfg.Logging.Level
			if opts.LogLevel != "" {
				level = opts.LogLevel
			}
			logger, err := logging.New(level, "console")
			if err != nil {
				return err
			}
			opts.Config = cfg
			opts.Logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.Logger != nil {
				_ = opts.Logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", ".", "directory containing config.yaml")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override logging.level")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewTemplateCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))

	return cmd
}

// openStore connects to the configured database. The caller must run the returned close func.
func (o *RootOptions) openStore(ctx context.Context) (repository.Store, func(), error) {
	conn, err := db.NewConnection(ctx, o.Config.Database, o.Logger)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewStore(conn.Pool, o.Logger), conn.Close, nil
}

// actAs resolves the --as account and returns a context carrying its session.
func (o *RootOptions) actAs(ctx context.Context, store repository.Store, email string) (context.Context, error) {
	if email == "" {
		return nil, fmt.Errorf("--as is required")
	}
	session, err := users.NewService(store, users.WithLogger(o.Logger)).SessionFor(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("resolve --as %s: %w", email, err)
	}
	return auth.ContextWithSession(ctx, session), nil
}
