// Package database embeds the schema migrations and runs them with goose.
// The master set owns the control-plane tables; the tenant set is the
// baseline schema applied to every per-tenant database. Both are idempotent:
// re-running against an up-to-date database is a no-op.
package database

import (
	"context"
	"embed"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for goose
	"github.com/pressly/goose/v3"
)

//go:embed migrations/master/*.sql migrations/tenant/*.sql
var migrations embed.FS

// goose keeps process-global dialect/FS state; serialize runs.
var gooseMu sync.Mutex

// ApplyMaster brings the control-plane database to the current schema version.
func ApplyMaster(ctx context.Context, dsn string) error {
	return apply(ctx, dsn, "migrations/master")
}

// ApplyTenant brings one tenant database to the current baseline version.
func ApplyTenant(ctx context.Context, dsn string) error {
	return apply(ctx, dsn, "migrations/tenant")
}

func apply(ctx context.Context, dsn, dir string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)

	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open db for migrations: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("apply %s: %w", dir, err)
	}
	return nil
}
