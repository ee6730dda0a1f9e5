package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atriumhq/atrium-saas/domains/users/be/service"
)

// CredentialsPostgres stores login credentials in the control-plane database.
// Unlike the tenant users repository it owns its pool; credentials live in
// the master store regardless of which tenant they belong to.
type CredentialsPostgres struct {
	db *pgxpool.Pool
}

var _ service.CredentialRepository = (*CredentialsPostgres)(nil)

func NewCredentialsPostgres(db *pgxpool.Pool) *CredentialsPostgres {
	if db == nil {
		panic("credentials repository requires a pool")
	}
	return &CredentialsPostgres{db: db}
}

const credentialColumns = "id, tenant_id, email, password_hash, permissions, created_at, updated_at"

func (r *CredentialsPostgres) Create(ctx context.Context, cred service.Credential) (service.Credential, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (id, tenant_id, email, password_hash, permissions)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+credentialColumns,
		cred.ID, cred.TenantID, cred.Email, cred.PasswordHash, cred.Permissions,
	)

	created, err := scanCredential(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return service.Credential{}, service.ErrCredentialConflict
		}
		return service.Credential{}, fmt.Errorf("inserting credential: %w", err)
	}
	return created, nil
}

func (r *CredentialsPostgres) GetByEmail(ctx context.Context, tenantID, email string) (service.Credential, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+credentialColumns+` FROM users WHERE tenant_id = $1 AND email = $2`,
		tenantID, email,
	)
	return scanCredential(row)
}

func scanCredential(row pgx.Row) (service.Credential, error) {
	var cred service.Credential
	err := row.Scan(
		&cred.ID, &cred.TenantID, &cred.Email, &cred.PasswordHash,
		&cred.Permissions, &cred.CreatedAt, &cred.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return service.Credential{}, service.ErrNotFound
		}
		return service.Credential{}, err
	}
	return cred, nil
}
