package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCmd applies the embedded schema migrations
func NewMigrateCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := rt.Database()
			if err != nil {
				return err
			}

			if err := db.Migrate(); err != nil {
				return fmt.Errorf("migrate failed: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
			return nil
		},
	}
}
