package repo

import (
	"context"
	"sync"
	"time"

	"github.com/atriumhq/atrium-saas/domains/users/be/service"
)

// CredentialsMemory is an in-memory credential store for tests and local
// development.
type CredentialsMemory struct {
	mu    sync.RWMutex
	creds map[string]service.Credential // keyed by tenantID + "\x00" + email
}

var _ service.CredentialRepository = (*CredentialsMemory)(nil)

func NewCredentialsMemory() *CredentialsMemory {
	return &CredentialsMemory{creds: make(map[string]service.Credential)}
}

func (r *CredentialsMemory) Create(_ context.Context, cred service.Credential) (service.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := credKey(cred.TenantID, cred.Email)
	if _, exists := r.creds[key]; exists {
		return service.Credential{}, service.ErrCredentialConflict
	}

	now := time.Now().UTC()
	cred.CreatedAt = now
	cred.UpdatedAt = now
	r.creds[key] = cred
	return cred, nil
}

func (r *CredentialsMemory) GetByEmail(_ context.Context, tenantID, email string) (service.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cred, ok := r.creds[credKey(tenantID, email)]
	if !ok {
		return service.Credential{}, service.ErrNotFound
	}
	return cred, nil
}

func credKey(tenantID, email string) string {
	return tenantID + "\x00" + email
}
