package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/marketplace-backend/internal/migrations"
)

func newMigrateCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema",
	}
	cmd.AddCommand(newMigrateUpCmd(e), newMigrateDownCmd(e), newMigrateVersionCmd(e))
	return cmd
}

func newMigrateUpCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := e.storage(cmd.Context())
			if err != nil {
				return err
			}
			if err := migrations.Run(db.DB); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return err
		},
	}
}

func newMigrateDownCmd(e *env) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps must be positive")
			}
			db, err := e.storage(cmd.Context())
			if err != nil {
				return err
			}
			if err := migrations.Down(db.DB, steps); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return err
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func newMigrateVersionCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := e.storage(cmd.Context())
			if err != nil {
				return err
			}
			v, dirty, err := migrations.Version(db.DB)
			if err != nil {
				return err
			}
			if dirty {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d (dirty)\n", v)
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), v)
			return err
		},
	}
}
