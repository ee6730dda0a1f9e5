package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/atriumhq/atrium-saas/platform/go/logging"
	"github.com/atriumhq/atrium-saas/platform/go/metrics"
	"github.com/atriumhq/atrium-saas/platform/go/persistence"
)

// ConnectionRouter resolves a tenant id to its pooled connection.
// Implemented by persistence.Router.
type ConnectionRouter interface {
	Tenant(ctx context.Context, tenantID string) (*pgxpool.Pool, error)
}

// HandleInvalidator is the optional recovery side of a ConnectionRouter:
// confirm a handed-out pool dead and drop it from the cache so the next
// lookup reopens. persistence.Router implements it.
type HandleInvalidator interface {
	InvalidateIfDead(ctx context.Context, tenantID string, pool *pgxpool.Pool) bool
}

// GateConfig wires the request gate. Codec and Router are required.
type GateConfig struct {
	Codec   *Codec
	Router  ConnectionRouter
	Metrics *metrics.Auth
}

// Gate returns the middleware that authenticates every request and routes it
// to its tenant store: bearer token extract, verify, tenant resolve, then
// TenantContext plus the tenant pool attached to the request context.
//
// Failure detail stays in logs and metrics. Clients see 401 for anything they
// caused (missing/bad/expired token, unknown or inactive tenant) and 500 when
// infrastructure failed, so error text cannot be used to probe which tenants
// exist.
func Gate(cfg GateConfig) func(http.Handler) http.Handler {
	if cfg.Codec == nil {
		panic("auth gate requires a codec")
	}
	if cfg.Router == nil {
		panic("auth gate requires a connection router")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logging.FromRequest(r, zap.NewNop())

			token, ok := BearerToken(r)
			if !ok {
				cfg.Metrics.IncRejected("no_token")
				unauthorized(w)
				return
			}

			claims, err := cfg.Codec.Verify(token)
			if err != nil {
				// Expired vs tampered matters to us, not to the caller.
				log.Debug("token rejected", zap.Error(err))
				cfg.Metrics.IncRejected(rejectReason(err))
				unauthorized(w)
				return
			}

			pool, err := cfg.Router.Tenant(r.Context(), claims.TenantID)
			if err != nil {
				if errors.Is(err, persistence.ErrTenantUnknown) {
					log.Info("tenant not routable",
						zap.String("tenant_id", claims.TenantID))
					cfg.Metrics.IncRejected("tenant_unknown")
					unauthorized(w)
					return
				}
				log.Error("tenant routing failed",
					zap.String("tenant_id", claims.TenantID), zap.Error(err))
				cfg.Metrics.IncRejected("routing_failure")
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			tc := TenantContext{
				TenantID:    claims.TenantID,
				UserID:      claims.UserID,
				Permissions: claims.Permissions,
			}
			cfg.Metrics.IncAllowed()

			ctx := WithTenantContext(r.Context(), tc)
			ctx = WithConn(ctx, pool)
			if inv, ok := cfg.Router.(HandleInvalidator); ok {
				tenantID := claims.TenantID
				ctx = WithConnInvalidator(ctx, func(c context.Context) bool {
					return inv.InvalidateIfDead(c, tenantID, pool)
				})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission gates a route on set membership in the request's
// permission claims. 401 without a gate-attached context, 403 without the
// permission.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc, ok := FromContext(r.Context())
			if !ok {
				unauthorized(w)
				return
			}
			if !tc.Can(perm) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the bearer credential from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}

	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrTokenSignature):
		return "token_signature"
	default:
		return "token_malformed"
	}
}
