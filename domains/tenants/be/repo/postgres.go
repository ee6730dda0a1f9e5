package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atriumhq/atrium-saas/domains/tenants/be/service"
)

// PostgresRepository stores registry entries in the master database.
type PostgresRepository struct {
	master *pgxpool.Pool
}

func NewPostgresRepository(master *pgxpool.Pool) *PostgresRepository {
	if master == nil {
		panic("tenant repository requires the master pool")
	}
	return &PostgresRepository{master: master}
}

func (r *PostgresRepository) Create(ctx context.Context, t service.Tenant) (service.Tenant, error) {
	row := r.master.QueryRow(ctx, `
        INSERT INTO tenants (id, name, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, name, status, created_at, updated_at`,
		t.ID, t.Name, string(t.Status), t.CreatedAt, t.UpdatedAt,
	)
	out, err := scanTenant(row)
	if err != nil {
		return service.Tenant{}, mapConflict(err)
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (service.Tenant, error) {
	row := r.master.QueryRow(ctx, `
        SELECT id, name, status, created_at, updated_at
        FROM tenants WHERE id = $1`, id,
	)
	return scanTenant(row)
}

func (r *PostgresRepository) List(ctx context.Context) ([]service.Tenant, error) {
	rows, err := r.master.Query(ctx, `
        SELECT id, name, status, created_at, updated_at
        FROM tenants ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []service.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status service.Status) (service.Tenant, error) {
	row := r.master.QueryRow(ctx, `
        UPDATE tenants SET status = $2, updated_at = now()
        WHERE id = $1
        RETURNING id, name, status, created_at, updated_at`,
		id, string(status),
	)
	return scanTenant(row)
}

func scanTenant(row pgx.Row) (service.Tenant, error) {
	var (
		t      service.Tenant
		status string
	)
	var createdAt, updatedAt time.Time
	if err := row.Scan(&t.ID, &t.Name, &status, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return service.Tenant{}, service.ErrNotFound
		}
		return service.Tenant{}, fmt.Errorf("scan tenant: %w", err)
	}
	t.Status = service.Status(status)
	t.CreatedAt = createdAt
	t.UpdatedAt = updatedAt
	return t, nil
}

func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return service.ErrConflict
	}
	return err
}

var _ service.Repository = (*PostgresRepository)(nil)
