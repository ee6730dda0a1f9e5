package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantStatusActive is the only status for which connections are routed.
const TenantStatusActive = "active"

// Directory answers "does tenant X exist and is it active" against the
// master database. Read-only; a single round trip per call.
type Directory struct {
	master *pgxpool.Pool
}

func NewDirectory(master *pgxpool.Pool) *Directory {
	if master == nil {
		panic("directory requires the master pool")
	}
	return &Directory{master: master}
}

// IsActive returns false (not an error) for unknown or non-active tenants.
// ErrDirectoryUnavailable is reserved for transport failures.
func (d *Directory) IsActive(ctx context.Context, tenantID string) (bool, error) {
	var status string
	err := d.master.QueryRow(ctx,
		`SELECT status FROM tenants WHERE id = $1`, tenantID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	return status == TenantStatusActive, nil
}
