// Package metrics exposes prometheus instrumentation for the routing and
// authentication core. Collectors are registered against an explicit
// Registerer so tests can construct throwaway instances.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Routing counts connection-router activity. A nil *Routing is a no-op, so
// components can take it as an optional dependency.
type Routing struct {
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	evictions   prometheus.Counter
	poolsOpened prometheus.Counter
}

func NewRouting(reg prometheus.Registerer) *Routing {
	factory := promauto.With(reg)
	return &Routing{
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "atrium_router_cache_hits_total",
			Help: "Tenant pool lookups served from the cache",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "atrium_router_cache_misses_total",
			Help: "Tenant pool lookups that required validation and open",
		}),
		evictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "atrium_router_evictions_total",
			Help: "Tenant pools evicted (capacity or invalidation)",
		}),
		poolsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "atrium_router_pools_opened_total",
			Help: "Tenant pools opened, including redundant race losers",
		}),
	}
}

func (m *Routing) IncCacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Routing) IncCacheMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

func (m *Routing) IncEviction() {
	if m != nil {
		m.evictions.Inc()
	}
}

func (m *Routing) IncPoolOpened() {
	if m != nil {
		m.poolsOpened.Inc()
	}
}

// Auth counts gate outcomes by coarse reason. Reasons are internal labels,
// never echoed to clients.
type Auth struct {
	allowed  prometheus.Counter
	rejected *prometheus.CounterVec
}

func NewAuth(reg prometheus.Registerer) *Auth {
	factory := promauto.With(reg)
	return &Auth{
		allowed: factory.NewCounter(prometheus.CounterOpts{
			Name: "atrium_auth_allowed_total",
			Help: "Requests that passed the auth gate",
		}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "atrium_auth_rejected_total",
			Help: "Requests rejected by the auth gate",
		}, []string{"reason"}),
	}
}

func (m *Auth) IncAllowed() {
	if m != nil {
		m.allowed.Inc()
	}
}

func (m *Auth) IncRejected(reason string) {
	if m != nil {
		m.rejected.WithLabelValues(reason).Inc()
	}
}
