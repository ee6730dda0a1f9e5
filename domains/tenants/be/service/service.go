package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atriumhq/atrium-saas/platform/go/persistence"
)

// Errors returned by the registry service.
var (
	ErrNotFound  = errors.New("tenant not found")
	ErrConflict  = errors.New("tenant id already registered")
	ErrInvalidID = errors.New("tenant id not allowed")
)

// Status of a tenant in the registry. A tenant only becomes Active once its
// database exists and carries the baseline schema; a partially provisioned
// tenant stays in Provisioning so the attempt can be retried.
type Status string

const (
	StatusPending      Status = "pending"
	StatusProvisioning Status = "provisioning"
	StatusActive       Status = "active"
	StatusSuspended    Status = "suspended"
)

// Tenant is a registry entry in the control-plane store. Tenants are never
// hard-deleted; suspension is a status change.
type Tenant struct {
	ID        string
	Name      string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository abstracts the registry store.
type Repository interface {
	Create(ctx context.Context, t Tenant) (Tenant, error)
	Get(ctx context.Context, id string) (Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
	SetStatus(ctx context.Context, id string, status Status) (Tenant, error)
}

// Provisioner creates the isolated store for a tenant and applies its
// baseline schema. Idempotent per phase so a partial failure can be retried.
type Provisioner interface {
	Provision(ctx context.Context, tenantID string) error
}

// Service owns tenant registration and lifecycle.
type Service struct {
	repo Repository
	prov Provisioner
	log  *zap.Logger
}

func New(repo Repository, prov Provisioner, log *zap.Logger) *Service {
	if repo == nil {
		panic("tenants service requires a repository")
	}
	if prov == nil {
		panic("tenants service requires a provisioner")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, prov: prov, log: log}
}

// Register creates the registry row and provisions the tenant store. The row
// starts pending and is promoted to active only after provisioning succeeds;
// on a provisioning failure it is left in provisioning state and the error
// is returned so the caller can retry via Provision.
func (s *Service) Register(ctx context.Context, id, name string) (Tenant, error) {
	if !persistence.ValidTenantID(id) {
		return Tenant{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	now := time.Now().UTC()
	t, err := s.repo.Create(ctx, Tenant{
		ID:        id,
		Name:      name,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Tenant{}, err
	}

	return s.provision(ctx, t)
}

// Provision retries provisioning for a tenant that is not active yet.
// Already-active tenants are returned unchanged.
func (s *Service) Provision(ctx context.Context, id string) (Tenant, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return Tenant{}, err
	}
	if t.Status == StatusActive || t.Status == StatusSuspended {
		return t, nil
	}
	return s.provision(ctx, t)
}

func (s *Service) provision(ctx context.Context, t Tenant) (Tenant, error) {
	t, err := s.repo.SetStatus(ctx, t.ID, StatusProvisioning)
	if err != nil {
		return Tenant{}, err
	}

	if err := s.prov.Provision(ctx, t.ID); err != nil {
		s.log.Error("tenant provisioning failed",
			zap.String("tenant_id", t.ID), zap.Error(err))
		return t, fmt.Errorf("provision tenant %s: %w", t.ID, err)
	}

	t, err = s.repo.SetStatus(ctx, t.ID, StatusActive)
	if err != nil {
		return Tenant{}, err
	}
	s.log.Info("tenant provisioned", zap.String("tenant_id", t.ID))
	return t, nil
}

// Get returns a registry entry by id.
func (s *Service) Get(ctx context.Context, id string) (Tenant, error) {
	return s.repo.Get(ctx, id)
}

// List returns all registry entries.
func (s *Service) List(ctx context.Context) ([]Tenant, error) {
	return s.repo.List(ctx)
}

// Suspend marks a tenant suspended. Already-issued connection handles are
// not revoked; new lookups stop routing.
func (s *Service) Suspend(ctx context.Context, id string) (Tenant, error) {
	return s.repo.SetStatus(ctx, id, StatusSuspended)
}

// Activate re-enables a suspended tenant.
func (s *Service) Activate(ctx context.Context, id string) (Tenant, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return Tenant{}, err
	}
	if t.Status != StatusSuspended {
		return t, nil
	}
	return s.repo.SetStatus(ctx, id, StatusActive)
}
