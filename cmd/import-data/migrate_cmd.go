package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iota-uz/iota-import/modules/imports/infrastructure/persistence"
)

func newMigrateCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or inspect the import schema migrations",
	}

	withDB := func(fn func(ctx context.Context, cmd *cobra.Command, db *sql.DB) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			db, err := persistence.OpenMigrationDB(env.dsn)
			if err != nil {
				return withCode(exitDB, err)
			}
			defer func() { _ = db.Close() }()
			if err := db.PingContext(cmd.Context()); err != nil {
				return withCode(exitDB, fmt.Errorf("db ping failed: %w", err))
			}
			return fn(cmd.Context(), cmd, db)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: withDB(func(ctx context.Context, cmd *cobra.Command, db *sql.DB) error {
			versions, err := persistence.MigrateUp(ctx, db)
			if err != nil {
				return withCode(exitDBWrite, err)
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{"applied": versions})
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: withDB(func(ctx context.Context, cmd *cobra.Command, db *sql.DB) error {
			version, err := persistence.MigrateDown(ctx, db)
			if err != nil {
				return withCode(exitDBWrite, err)
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{"rolled_back": version})
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the state of every migration",
		RunE: withDB(func(ctx context.Context, cmd *cobra.Command, db *sql.DB) error {
			states, err := persistence.MigrationStatus(ctx, db)
			if err != nil {
				return withCode(exitDB, err)
			}
			for _, s := range states {
				if err := writeJSONLine(cmd.OutOrStdout(), map[string]any{
					"version": s.Version,
					"path":    s.Path,
					"applied": s.Applied,
				}); err != nil {
					return err
				}
			}
			return nil
		}),
	})
	return cmd
}
