package migratecmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atriumhq/atrium-saas/database"
)

// Command applies embedded migrations against a database.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded schema migrations",
	}

	cmd.AddCommand(masterCommand(), tenantCommand())
	return cmd
}

func masterCommand() *cobra.Command {
	var databaseURL string

	c := &cobra.Command{
		Use:   "master",
		Short: "Apply control-plane migrations (tenants, credentials, permissions)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.ApplyMaster(cmd.Context(), databaseURL); err != nil {
				return fmt.Errorf("apply master migrations: %w", err)
			}
			fmt.Println("control-plane schema up to date")
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "control-plane connection string")
	_ = c.MarkFlagRequired("database-url")
	return c
}

func tenantCommand() *cobra.Command {
	var databaseURL string

	c := &cobra.Command{
		Use:   "tenant",
		Short: "Apply tenant schema migrations against one tenant database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.ApplyTenant(cmd.Context(), databaseURL); err != nil {
				return fmt.Errorf("apply tenant migrations: %w", err)
			}
			fmt.Println("tenant schema up to date")
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "tenant database connection string")
	_ = c.MarkFlagRequired("database-url")
	return c
}
