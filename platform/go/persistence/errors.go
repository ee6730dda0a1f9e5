package persistence

import "errors"

// Routing failures surfaced by the connection router. Callers translate these
// to transport-level outcomes; the distinction between "the tenant is not
// routable" and "infrastructure is down" matters there (401 vs 5xx).
var (
	// ErrTenantUnknown covers both an unregistered tenant id and a tenant
	// whose status is not active. No connection is attempted in either case.
	ErrTenantUnknown = errors.New("tenant unknown or inactive")

	// ErrConnectFailed means the tenant store itself was unreachable. The
	// router does not retry; retry policy belongs to the caller.
	ErrConnectFailed = errors.New("tenant store connect failed")

	// ErrDirectoryUnavailable means the control-plane lookup failed, as
	// opposed to answering "not found".
	ErrDirectoryUnavailable = errors.New("tenant directory unavailable")

	// ErrInvalidTenantID is returned when an id fails the allow-list check
	// before any target derivation happens.
	ErrInvalidTenantID = errors.New("invalid tenant id")
)
