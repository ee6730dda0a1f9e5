package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atriumhq/atrium-saas/domains/tenants/be/repo"
	"github.com/atriumhq/atrium-saas/domains/tenants/be/service"
)

type stubProvisioner struct {
	err   error
	calls []string
}

func (p *stubProvisioner) Provision(_ context.Context, tenantID string) error {
	p.calls = append(p.calls, tenantID)
	return p.err
}

func newService(prov *stubProvisioner) (*service.Service, *repo.MemoryRepository) {
	store := repo.NewMemoryRepository()
	return service.New(store, prov, zap.NewNop()), store
}

func TestRegisterProvisionsAndActivates(t *testing.T) {
	prov := &stubProvisioner{}
	svc, _ := newService(prov)

	tenant, err := svc.Register(context.Background(), "acme", "Acme Corp")
	require.NoError(t, err)
	require.Equal(t, "acme", tenant.ID)
	require.Equal(t, service.StatusActive, tenant.Status)
	require.Equal(t, []string{"acme"}, prov.calls)
}

func TestRegisterRejectsInvalidID(t *testing.T) {
	prov := &stubProvisioner{}
	svc, _ := newService(prov)

	for _, id := range []string{"", "Acme", "bad-id", "x;y"} {
		_, err := svc.Register(context.Background(), id, "name")
		require.ErrorIs(t, err, service.ErrInvalidID, "id %q", id)
	}
	require.Empty(t, prov.calls)
}

func TestRegisterDuplicateID(t *testing.T) {
	svc, _ := newService(&stubProvisioner{})

	_, err := svc.Register(context.Background(), "acme", "first")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "acme", "second")
	require.ErrorIs(t, err, service.ErrConflict)
}

func TestRegisterKeepsTenantRetryableOnProvisionFailure(t *testing.T) {
	prov := &stubProvisioner{err: errors.New("schema apply failed")}
	svc, store := newService(prov)

	_, err := svc.Register(context.Background(), "acme", "Acme Corp")
	require.Error(t, err)

	// Registration is not rolled back; the row stays in provisioning so the
	// attempt can be retried.
	stored, err := store.Get(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, service.StatusProvisioning, stored.Status)

	prov.err = nil
	tenant, err := svc.Provision(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, service.StatusActive, tenant.Status)
	require.Equal(t, []string{"acme", "acme"}, prov.calls)
}

func TestProvisionActiveTenantIsNoop(t *testing.T) {
	prov := &stubProvisioner{}
	svc, _ := newService(prov)

	_, err := svc.Register(context.Background(), "acme", "Acme Corp")
	require.NoError(t, err)

	tenant, err := svc.Provision(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, service.StatusActive, tenant.Status)
	require.Equal(t, []string{"acme"}, prov.calls, "active tenants are not re-provisioned")
}

func TestProvisionUnknownTenant(t *testing.T) {
	svc, _ := newService(&stubProvisioner{})

	_, err := svc.Provision(context.Background(), "ghost")
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestSuspendAndActivate(t *testing.T) {
	prov := &stubProvisioner{}
	svc, _ := newService(prov)

	_, err := svc.Register(context.Background(), "acme", "Acme Corp")
	require.NoError(t, err)

	suspended, err := svc.Suspend(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, service.StatusSuspended, suspended.Status)

	// Provisioning a suspended tenant leaves it suspended.
	unchanged, err := svc.Provision(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, service.StatusSuspended, unchanged.Status)

	activated, err := svc.Activate(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, service.StatusActive, activated.Status)

	// Activate on an already-active tenant changes nothing.
	again, err := svc.Activate(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, service.StatusActive, again.Status)
}

func TestList(t *testing.T) {
	svc, _ := newService(&stubProvisioner{})

	for _, id := range []string{"zeta", "acme", "mid"} {
		_, err := svc.Register(context.Background(), id, id)
		require.NoError(t, err)
	}

	tenants, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tenants, 3)
	require.Equal(t, "acme", tenants[0].ID)
	require.Equal(t, "mid", tenants[1].ID)
	require.Equal(t, "zeta", tenants[2].ID)
}
