package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/atriumhq/atrium-saas/database"
	"github.com/atriumhq/atrium-saas/domains/tenants/be/provisioning"
	"github.com/atriumhq/atrium-saas/platform/go/persistence"
)

func TestRouterProvisionAndRouteEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping routing integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("master"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, database.ApplyMaster(ctx, connString))

	master, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: connString})
	require.NoError(t, err)
	t.Cleanup(master.Close)

	_, err = master.Exec(ctx,
		`INSERT INTO tenants (id, name, status) VALUES ($1, $2, $3)`,
		"acme", "Acme Corp", "active")
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	template := persistence.TargetTemplate{
		Host:     host,
		Port:     port.Int(),
		User:     "postgres",
		Password: "postgres",
	}

	directory := persistence.NewDirectory(master)

	active, err := directory.IsActive(ctx, "acme")
	require.NoError(t, err)
	require.True(t, active)

	active, err = directory.IsActive(ctx, "ghost")
	require.NoError(t, err)
	require.False(t, active)

	prov := provisioning.NewDatabaseProvisioner(master, template, zap.NewNop())
	require.NoError(t, prov.Provision(ctx, "acme"))

	// Provisioning again must tolerate the existing database and converge.
	require.NoError(t, prov.Provision(ctx, "acme"))

	router := persistence.NewRouter(persistence.RouterConfig{
		Directory: directory,
		Template:  template,
		Master:    master,
	})
	t.Cleanup(router.Close)

	pool, err := router.Tenant(ctx, "acme")
	require.NoError(t, err)

	_, err = pool.Exec(ctx,
		`INSERT INTO users (id, email, first_name, last_name) VALUES ($1, $2, $3, $4)`,
		"u1", "alice@example.com", "Alice", "Smith")
	require.NoError(t, err)

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&count))
	require.Equal(t, 1, count)

	// The master database never sees tenant rows; its users table is the
	// credential store and stays empty.
	require.NoError(t, master.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&count))
	require.Zero(t, count)

	again, err := router.Tenant(ctx, "acme")
	require.NoError(t, err)
	require.Same(t, pool, again)

	_, err = router.Tenant(ctx, "ghost")
	require.ErrorIs(t, err, persistence.ErrTenantUnknown)

	// Suspension stops new lookups after the cached handle is dropped.
	_, err = master.Exec(ctx, `UPDATE tenants SET status = 'suspended' WHERE id = $1`, "acme")
	require.NoError(t, err)

	router.Invalidate("acme", pool)
	_, err = router.Tenant(ctx, "acme")
	require.ErrorIs(t, err, persistence.ErrTenantUnknown)
}
