package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alem-hub/progress-hub/config"
	"github.com/alem-hub/progress-hub/internal/app"
	"github.com/alem-hub/progress-hub/internal/infrastructure/persistence/postgres"
)

func newMigrateCommand(c *cli) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database schema migrations",
	}

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withMigrator(cmd.Context(), func(m *postgres.Migrator) error {
					applied, err := m.Migrate(cmd.Context())
					if err != nil {
						return fmt.Errorf("migrate: %w", err)
					}
					fmt.Printf("applied %d migration(s)\n", applied)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest applied migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withMigrator(cmd.Context(), func(m *postgres.Migrator) error {
					if err := m.Rollback(cmd.Context()); err != nil {
						return fmt.Errorf("rollback: %w", err)
					}
					fmt.Println("rolled back the latest migration")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and when they were applied",
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withMigrator(cmd.Context(), func(m *postgres.Migrator) error {
					migrations, err := m.Status(cmd.Context())
					if err != nil {
						return fmt.Errorf("migration status: %w", err)
					}
					for _, mg := range migrations {
						applied := "pending"
						if mg.IsApplied {
							applied = mg.AppliedAt.Format("2006-01-02 15:04:05")
						}
						fmt.Printf("%03d  %-32s %s\n", mg.Version, mg.Name, applied)
					}
					return nil
				})
			},
		},
	)

	return migrateCmd
}

func (c *cli) withMigrator(ctx context.Context, fn func(m *postgres.Migrator) error) error {
	if c.cfg.App.Store != config.StorePostgres {
		return app.ErrNoDatabase
	}

	conn, err := app.Connect(ctx, c.cfg.Database, c.log)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(postgres.NewMigrator(conn))
}
