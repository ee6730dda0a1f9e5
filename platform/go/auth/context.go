package auth

import (
	"context"
	"slices"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantContext captures the identity and authorization facts for one request,
// derived from verified token claims. It lives on the request context and dies
// with it.
type TenantContext struct {
	TenantID    string
	UserID      string
	Permissions []string
}

// Can reports whether the permission set contains perm.
func (tc TenantContext) Can(perm string) bool {
	return slices.Contains(tc.Permissions, perm)
}

type ctxKey int

const (
	tenantCtxKey ctxKey = iota
	tenantConnKey
	connInvalidateKey
)

// WithTenantContext returns a derived context carrying the request identity.
func WithTenantContext(ctx context.Context, tc TenantContext) context.Context {
	return context.WithValue(ctx, tenantCtxKey, tc)
}

// FromContext extracts the TenantContext attached by the gate.
func FromContext(ctx context.Context) (TenantContext, bool) {
	tc, ok := ctx.Value(tenantCtxKey).(TenantContext)
	return tc, ok
}

// WithConn returns a derived context carrying the tenant's pooled connection.
func WithConn(ctx context.Context, pool *pgxpool.Pool) context.Context {
	return context.WithValue(ctx, tenantConnKey, pool)
}

// ConnFromContext extracts the tenant pool attached by the gate.
func ConnFromContext(ctx context.Context) (*pgxpool.Pool, bool) {
	pool, ok := ctx.Value(tenantConnKey).(*pgxpool.Pool)
	return pool, ok
}

// WithConnInvalidator returns a derived context carrying the hook that drops
// the routed connection from the cache once a caller confirms it dead.
func WithConnInvalidator(ctx context.Context, fn func(context.Context) bool) context.Context {
	return context.WithValue(ctx, connInvalidateKey, fn)
}

// InvalidateConn runs the eviction hook attached by the gate. It reports
// whether a dead handle was evicted; with no hook present, or a handle that
// is still alive, it reports false.
func InvalidateConn(ctx context.Context) bool {
	fn, ok := ctx.Value(connInvalidateKey).(func(context.Context) bool)
	if !ok {
		return false
	}
	return fn(ctx)
}
