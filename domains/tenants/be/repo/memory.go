package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/atriumhq/atrium-saas/domains/tenants/be/service"
)

// MemoryRepository is an in-memory registry for tests and local development.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]service.Tenant
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]service.Tenant)}
}

func (r *MemoryRepository) Create(ctx context.Context, t service.Tenant) (service.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[t.ID]; exists {
		return service.Tenant{}, service.ErrConflict
	}
	r.byID[t.ID] = t
	return t, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (service.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byID[id]
	if !ok {
		return service.Tenant{}, service.ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]service.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tenants := make([]service.Tenant, 0, len(r.byID))
	for _, t := range r.byID {
		tenants = append(tenants, t)
	}
	sort.Slice(tenants, func(i, j int) bool {
		return tenants[i].ID < tenants[j].ID
	})
	return tenants, nil
}

func (r *MemoryRepository) SetStatus(ctx context.Context, id string, status service.Status) (service.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok {
		return service.Tenant{}, service.ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	r.byID[id] = t
	return t, nil
}

var _ service.Repository = (*MemoryRepository)(nil)
