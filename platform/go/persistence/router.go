package persistence

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/atriumhq/atrium-saas/platform/go/metrics"
)

// DefaultMaxTenantPools bounds the number of distinct tenant pools held at
// once when the config does not say otherwise.
const DefaultMaxTenantPools = 10

// RoutingDirectory is the lookup the router consults before opening a
// connection for a tenant it has not seen.
type RoutingDirectory interface {
	IsActive(ctx context.Context, tenantID string) (bool, error)
}

// OpenFunc opens a pool for a derived target. Swapped out in tests.
type OpenFunc func(ctx context.Context, target Target) (*pgxpool.Pool, error)

// RouterConfig wires a Router. Directory, Template and Master are required.
type RouterConfig struct {
	Directory      RoutingDirectory
	Template       TargetTemplate
	Master         *pgxpool.Pool
	MaxTenantPools int
	Open           OpenFunc
	Clock          func() time.Time
	Logger         *zap.Logger
	Metrics        *metrics.Routing
}

type tenantEntry struct {
	pool     *pgxpool.Pool
	lastUsed atomic.Int64 // unix nanos, touched on every hit
}

func (e *tenantEntry) touch(now time.Time) {
	e.lastUsed.Store(now.UnixNano())
}

// Router owns the bounded cache of live per-tenant pools plus the always-open
// master pool. One pooled handle per tenant; handles are shared across
// concurrent requests and the cache keeps owning them after hand-out.
//
// Readers take the fast path under a read lock with no I/O. A miss validates
// the tenant and opens the pool before taking the write lock, so the
// exclusive section stays short; when two requests race the same miss, the
// loser's freshly opened pool is closed and the winner's entry returned.
type Router struct {
	directory RoutingDirectory
	template  TargetTemplate
	master    *pgxpool.Pool
	capacity  int
	open      OpenFunc
	clock     func() time.Time
	log       *zap.Logger
	metrics   *metrics.Routing

	mu    sync.RWMutex
	pools map[string]*tenantEntry
}

func NewRouter(cfg RouterConfig) *Router {
	if cfg.Directory == nil {
		panic("router requires a tenant directory")
	}
	if cfg.Master == nil {
		panic("router requires the master pool")
	}
	if cfg.Template.Host == "" {
		panic("router requires a target template")
	}

	capacity := cfg.MaxTenantPools
	if capacity <= 0 {
		capacity = DefaultMaxTenantPools
	}
	open := cfg.Open
	if open == nil {
		open = OpenTarget
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Router{
		directory: cfg.Directory,
		template:  cfg.Template,
		master:    cfg.Master,
		capacity:  capacity,
		open:      open,
		clock:     clock,
		log:       log,
		metrics:   cfg.Metrics,
		pools:     make(map[string]*tenantEntry),
	}
}

// OpenTarget is the default OpenFunc: a verified pool for the target DSN.
func OpenTarget(ctx context.Context, target Target) (*pgxpool.Pool, error) {
	return NewPool(ctx, PoolConfig{ConnString: target.DSN()})
}

// Master returns the control-plane pool. Initialized once at startup, never
// evicted, shared for the process lifetime.
func (r *Router) Master() *pgxpool.Pool {
	return r.master
}

// Tenant returns the pooled handle for an active tenant, opening and caching
// one on first use. Unknown, inactive or malformed ids fail with
// ErrTenantUnknown and no connection attempt.
func (r *Router) Tenant(ctx context.Context, tenantID string) (*pgxpool.Pool, error) {
	if !ValidTenantID(tenantID) {
		return nil, fmt.Errorf("%w: malformed id", ErrTenantUnknown)
	}

	r.mu.RLock()
	entry, ok := r.pools[tenantID]
	r.mu.RUnlock()
	if ok {
		entry.touch(r.clock())
		r.metrics.IncCacheHit()
		return entry.pool, nil
	}
	r.metrics.IncCacheMiss()

	active, err := r.directory.IsActive(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, fmt.Errorf("%w: %s", ErrTenantUnknown, tenantID)
	}

	target, err := r.template.ForTenant(tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTenantUnknown, err)
	}

	// Network I/O happens here, outside any lock. A request that gave up
	// waiting changes nothing: whoever completes still inserts normally.
	pool, err := r.open(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	r.metrics.IncPoolOpened()

	r.mu.Lock()
	if existing, ok := r.pools[tenantID]; ok {
		// Lost the miss-fill race. Keep the entry already present and
		// discard the redundant open; tolerated, not an error.
		r.mu.Unlock()
		pool.Close()
		existing.touch(r.clock())
		return existing.pool, nil
	}

	victims := r.evictForInsertLocked()
	entry = &tenantEntry{pool: pool}
	entry.touch(r.clock())
	r.pools[tenantID] = entry
	r.mu.Unlock()

	for _, v := range victims {
		v.Close()
	}
	return pool, nil
}

// evictForInsertLocked removes least-recently-used entries one at a time
// until an insert fits the capacity bound. Victim pools are returned so they
// can be closed outside the lock.
func (r *Router) evictForInsertLocked() []*pgxpool.Pool {
	var victims []*pgxpool.Pool
	for len(r.pools) >= r.capacity {
		var (
			oldestID string
			oldest   int64
		)
		for id, e := range r.pools {
			if used := e.lastUsed.Load(); oldestID == "" || used < oldest {
				oldestID, oldest = id, used
			}
		}
		victims = append(victims, r.pools[oldestID].pool)
		delete(r.pools, oldestID)
		r.metrics.IncEviction()
		r.log.Debug("evicted tenant pool", zap.String("tenant_id", oldestID))
	}
	return victims
}

// Invalidate drops the cached entry for tenantID if it still holds the given
// pool, closing it. Callers use this when a handle fails mid-use so the next
// lookup reopens instead of handing the broken pool out again. Reports
// whether an entry was evicted; a stale handle is a no-op.
func (r *Router) Invalidate(tenantID string, pool *pgxpool.Pool) bool {
	r.mu.Lock()
	entry, ok := r.pools[tenantID]
	if ok && entry.pool == pool {
		delete(r.pools, tenantID)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if ok {
		pool.Close()
		r.metrics.IncEviction()
		r.log.Warn("invalidated tenant pool", zap.String("tenant_id", tenantID))
	}
	return ok
}

// InvalidateIfDead confirms a handed-out handle dead with a ping and evicts
// it on failure, so the next lookup reopens instead of serving the broken
// pool again. Request error paths call this; a handle that still answers the
// ping is left cached.
func (r *Router) InvalidateIfDead(ctx context.Context, tenantID string, pool *pgxpool.Pool) bool {
	if pool == nil {
		return false
	}
	if err := pool.Ping(ctx); err == nil {
		return false
	}
	return r.Invalidate(tenantID, pool)
}

// Len reports the number of cached tenant pools.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pools)
}

// Close shuts down every cached tenant pool. The master pool is owned by the
// caller and left alone.
func (r *Router) Close() {
	r.mu.Lock()
	pools := r.pools
	r.pools = make(map[string]*tenantEntry)
	r.mu.Unlock()

	for _, e := range pools {
		e.pool.Close()
	}
}
