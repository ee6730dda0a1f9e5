package persistence

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
)

// tenantIDPattern is the allow-list for tenant identifiers. Anything outside
// it is rejected before the id gets anywhere near a database name or DSN, so
// an id can never smuggle extra target fields.
var tenantIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_]{0,62}$`)

// ValidTenantID reports whether id is safe to use in a connection target.
func ValidTenantID(id string) bool {
	return tenantIDPattern.MatchString(id)
}

// Target identifies one tenant-specific database on the shared server.
type Target struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// DSN renders the target as a postgres URL, escaping credentials.
func (t Target) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(t.User, t.Password),
		Host:   t.Host + ":" + strconv.Itoa(t.Port),
		Path:   "/" + t.Database,
	}
	return u.String()
}

// TargetTemplate holds the shared connection parameters. Per-tenant targets
// differ only in database name.
type TargetTemplate struct {
	Host     string
	Port     int
	User     string
	Password string
}

// DatabaseName derives the per-tenant database name.
func DatabaseName(tenantID string) string {
	return "tenant_" + tenantID
}

// ForTenant derives the connection target for a tenant. Pure; no network.
func (tt TargetTemplate) ForTenant(tenantID string) (Target, error) {
	if !ValidTenantID(tenantID) {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidTenantID, tenantID)
	}
	return Target{
		Host:     tt.Host,
		Port:     tt.Port,
		User:     tt.User,
		Password: tt.Password,
		Database: DatabaseName(tenantID),
	}, nil
}
