package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/atriumhq/atrium-saas/domains/users/be/service"
	"github.com/atriumhq/atrium-saas/platform/go/persistence"
)

const uniqueViolation = "23505"

// Postgres persists users in tenant databases. It is stateless; the routed
// tenant handle arrives with every call.
type Postgres struct{}

var _ service.Repository = Postgres{}

func NewPostgres() Postgres {
	return Postgres{}
}

const userColumns = "id, email, first_name, last_name, created_at, updated_at"

func (Postgres) Create(ctx context.Context, db persistence.Querier, user service.User) (service.User, error) {
	row := db.QueryRow(ctx, `
		INSERT INTO users (id, email, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		user.ID, user.Email, user.FirstName, user.LastName,
	)

	created, err := scanUser(row)
	if err != nil {
		return service.User{}, mapConflict("inserting user", err)
	}
	return created, nil
}

func (Postgres) Get(ctx context.Context, db persistence.Querier, id string) (service.User, error) {
	row := db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (Postgres) List(ctx context.Context, db persistence.Querier) ([]service.User, error) {
	rows, err := db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []service.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

func (Postgres) Update(ctx context.Context, db persistence.Querier, id string, input service.UpdateInput) (service.User, error) {
	row := db.QueryRow(ctx, `
		UPDATE users
		SET first_name = COALESCE($2, first_name),
		    last_name  = COALESCE($3, last_name),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		id, input.FirstName, input.LastName,
	)
	return scanUser(row)
}

func (Postgres) Delete(ctx context.Context, db persistence.Querier, id string) error {
	tag, err := db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrNotFound
	}
	return nil
}

func (Postgres) Count(ctx context.Context, db persistence.Querier) (int64, error) {
	var count int64
	if err := db.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

func scanUser(row pgx.Row) (service.User, error) {
	var user service.User
	err := row.Scan(&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return service.User{}, service.ErrNotFound
		}
		return service.User{}, fmt.Errorf("scanning user: %w", err)
	}
	return user, nil
}

func mapConflict(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return service.ErrConflict
	}
	if errors.Is(err, service.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
