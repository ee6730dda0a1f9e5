// Package provisioning creates the isolated database for a new tenant. The
// workflow is two-phase and deliberately not transactional: CREATE DATABASE
// cannot join a transaction spanning the master store, so each phase is
// idempotent on its own and failures stay distinguishable per phase.
package provisioning

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/atriumhq/atrium-saas/database"
	"github.com/atriumhq/atrium-saas/platform/go/persistence"
)

// Phase-identified provisioning failures. A schema failure after the store
// was created leaves a schemaless database behind; the caller retries, and
// the create phase then short-circuits on "already exists".
var (
	ErrStoreCreateFailed = errors.New("tenant store create failed")
	ErrSchemaApplyFailed = errors.New("tenant schema apply failed")
)

// duplicateDatabase is the Postgres SQLSTATE for CREATE DATABASE on an
// existing name.
const duplicateDatabase = "42P04"

// DatabaseProvisioner provisions per-tenant databases on the shared server.
type DatabaseProvisioner struct {
	admin    *pgxpool.Pool
	template persistence.TargetTemplate
	log      *zap.Logger

	// Phase seams, overridden in tests.
	createDB    func(ctx context.Context, name string) error
	applySchema func(ctx context.Context, dsn string) error
}

func NewDatabaseProvisioner(admin *pgxpool.Pool, template persistence.TargetTemplate, log *zap.Logger) *DatabaseProvisioner {
	if admin == nil {
		panic("database provisioner requires the admin pool")
	}
	if log == nil {
		log = zap.NewNop()
	}

	p := &DatabaseProvisioner{admin: admin, template: template, log: log}
	p.createDB = p.createDatabase
	p.applySchema = database.ApplyTenant
	return p
}

// Provision creates the tenant database and applies the baseline schema.
// Safe to call again after either phase failed.
func (p *DatabaseProvisioner) Provision(ctx context.Context, tenantID string) error {
	target, err := p.template.ForTenant(tenantID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreCreateFailed, err)
	}

	if err := p.createDB(ctx, target.Database); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == duplicateDatabase {
			// Retry after a partial failure: the store exists, only the
			// schema phase is outstanding.
			p.log.Warn("tenant database already exists, applying schema only",
				zap.String("tenant_id", tenantID))
		} else {
			return fmt.Errorf("%w: %v", ErrStoreCreateFailed, err)
		}
	}

	if err := p.applySchema(ctx, target.DSN()); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaApplyFailed, err)
	}

	p.log.Info("tenant database ready",
		zap.String("tenant_id", tenantID),
		zap.String("database", target.Database))
	return nil
}

func (p *DatabaseProvisioner) createDatabase(ctx context.Context, name string) error {
	// CREATE DATABASE takes no bind parameters; the name passed here was
	// derived from an allow-listed tenant id and is sanitized regardless.
	sql := fmt.Sprintf("CREATE DATABASE %s", pgx.Identifier{name}.Sanitize())
	if _, err := p.admin.Exec(ctx, sql); err != nil {
		return err
	}
	return nil
}
