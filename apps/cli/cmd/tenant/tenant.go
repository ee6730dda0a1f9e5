package tenantcmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atriumhq/atrium-saas/domains/tenants/be/provisioning"
	"github.com/atriumhq/atrium-saas/domains/tenants/be/repo"
	"github.com/atriumhq/atrium-saas/domains/tenants/be/service"
	"github.com/atriumhq/atrium-saas/platform/go/persistence"
)

// Command groups tenant-related helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Tenant utilities (create/provision/suspend)",
	}

	cmd.AddCommand(createCommand(), provisionCommand(), suspendCommand())
	return cmd
}

type connFlags struct {
	databaseURL      string
	tenantDBHost     string
	tenantDBPort     int
	tenantDBUser     string
	tenantDBPassword string
}

func (f *connFlags) register(c *cobra.Command) {
	c.Flags().StringVar(&f.databaseURL, "database-url", "", "control-plane connection string")
	c.Flags().StringVar(&f.tenantDBHost, "tenant-db-host", "", "tenant database server host")
	c.Flags().IntVar(&f.tenantDBPort, "tenant-db-port", 5432, "tenant database server port")
	c.Flags().StringVar(&f.tenantDBUser, "tenant-db-user", "", "tenant database user")
	c.Flags().StringVar(&f.tenantDBPassword, "tenant-db-password", "", "tenant database password")
	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("tenant-db-host")
	_ = c.MarkFlagRequired("tenant-db-user")
	_ = c.MarkFlagRequired("tenant-db-password")
}

func (f *connFlags) buildService(cmd *cobra.Command) (*service.Service, func(), error) {
	ctx := cmd.Context()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: f.databaseURL})
	if err != nil {
		return nil, nil, fmt.Errorf("init pool: %w", err)
	}

	template := persistence.TargetTemplate{
		Host:     f.tenantDBHost,
		Port:     f.tenantDBPort,
		User:     f.tenantDBUser,
		Password: f.tenantDBPassword,
	}

	logger := zap.NewNop()
	prov := provisioning.NewDatabaseProvisioner(pool, template, logger)
	svc := service.New(repo.NewPostgresRepository(pool), prov, logger)

	return svc, pool.Close, nil
}

func createCommand() *cobra.Command {
	var (
		flags      connFlags
		tenantID   string
		tenantName string
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Register a tenant and provision its database",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := flags.buildService(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			t, err := svc.Register(cmd.Context(), tenantID, tenantName)
			if err != nil {
				return fmt.Errorf("register tenant: %w", err)
			}

			fmt.Printf("tenant %s is %s\n", t.ID, t.Status)
			return nil
		},
	}

	flags.register(c)
	c.Flags().StringVar(&tenantID, "id", "", "tenant identifier (lowercase, digits, underscores)")
	c.Flags().StringVar(&tenantName, "name", "", "tenant display name")
	_ = c.MarkFlagRequired("id")
	_ = c.MarkFlagRequired("name")
	return c
}

func provisionCommand() *cobra.Command {
	var flags connFlags

	c := &cobra.Command{
		Use:   "provision <tenant-id>",
		Short: "Retry provisioning for a registered tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := flags.buildService(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			t, err := svc.Provision(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("provision tenant: %w", err)
			}

			fmt.Printf("tenant %s is %s\n", t.ID, t.Status)
			return nil
		},
	}

	flags.register(c)
	return c
}

func suspendCommand() *cobra.Command {
	var databaseURL string

	c := &cobra.Command{
		Use:   "suspend <tenant-id>",
		Short: "Suspend a tenant so new requests stop routing to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer pool.Close()

			svc := service.New(repo.NewPostgresRepository(pool), noopProvisioner{}, zap.NewNop())
			t, err := svc.Suspend(ctx, args[0])
			if err != nil {
				return fmt.Errorf("suspend tenant: %w", err)
			}

			fmt.Printf("tenant %s is %s\n", t.ID, t.Status)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "control-plane connection string")
	_ = c.MarkFlagRequired("database-url")
	return c
}

type noopProvisioner struct{}

func (noopProvisioner) Provision(context.Context, string) error { return nil }
