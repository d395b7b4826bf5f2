package cli

import (
	"github.com/spf13/cobra"

	"github.com/silicograph/bridger/internal/config"
	"github.com/silicograph/bridger/internal/infrastructure/database/postgres"
	"github.com/silicograph/bridger/pkg/errors"
)

const defaultMigrationsDir = "internal/infrastructure/database/postgres/migrations"

// NewMigrateCmd builds the migrate subcommand, which applies the staging
// schema to Postgres.  Only the services backend has a schema to migrate.
func NewMigrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply staging-store schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if cliCtx.Config.Store.Backend != config.BackendServices {
				return errors.InvalidParam("migrate requires the services backend")
			}

			conn, err := postgres.NewConnection(cliCtx.Config.Postgres, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()

			if err := conn.RunMigrations(dir); err != nil {
				return err
			}
			return PrintResult(cmd, "migrations applied")
		},
	}

	cmd.Flags().StringVar(&dir, "dir", defaultMigrationsDir, "migrations directory")
	return cmd
}
