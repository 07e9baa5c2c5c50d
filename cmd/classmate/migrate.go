// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package main

import (
	"os"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/classmate/classmate/internal/settings"
)

// NewMigrateCmd creates the migrate subcommand and its actions.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmdWithDeps(nil)
}

func newMigrateCmdWithDeps(deps *MigrateDeps) *cobra.Command {
	if deps == nil {
		deps = &MigrateDeps{}
	}
	if deps.NewMigrator == nil {
		deps.NewMigrator = func(databaseURL string) (Migrator, error) {
			return settings.NewMigrator(databaseURL)
		}
	}

	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back, or inspect schema migrations on the settings database.`,
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL URL (default: DATABASE_URL environment variable)")

	resolveURL := func() (string, error) {
		if databaseURL != "" {
			return databaseURL, nil
		}
		if url := os.Getenv("DATABASE_URL"); url != "" {
			return url, nil
		}
		return "", oops.Code("CONFIG_INVALID").Errorf("--database-url or the DATABASE_URL environment variable is required")
	}

	withMigrator := func(fn func(cmd *cobra.Command, m Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			url, err := resolveURL()
			if err != nil {
				return err
			}
			m, err := deps.NewMigrator(url)
			if err != nil {
				return oops.Code("MIGRATION_SETUP_FAILED").Wrap(err)
			}
			defer func() {
				if closeErr := m.Close(); closeErr != nil {
					cmd.PrintErrln("warning: failed to close migrator:", closeErr)
				}
			}()
			return fn(cmd, m)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator) error {
			if err := m.Up(); err != nil {
				return err
			}
			cmd.Println("Migrations applied")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator) error {
			if err := m.Down(); err != nil {
				return err
			}
			cmd.Println("Migrations rolled back")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current migration version",
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator) error {
			version, dirty, err := m.Version()
			if err != nil {
				return err
			}
			if dirty {
				cmd.Printf("Version: %d (dirty)\n", version)
			} else {
				cmd.Printf("Version: %d\n", version)
			}
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Force the migration version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("CONFIG_INVALID").With("version", args[0]).Errorf("version must be an integer")
			}
			return withMigrator(func(cmd *cobra.Command, m Migrator) error {
				if err := m.Force(target); err != nil {
					return err
				}
				cmd.Printf("Forced version to %d\n", target)
				return nil
			})(cmd, args)
		},
	})

	return cmd
}
