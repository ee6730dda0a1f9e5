package service_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium-saas/domains/users/be/service"
	"github.com/atriumhq/atrium-saas/platform/go/auth"
	"github.com/atriumhq/atrium-saas/platform/go/persistence"
)

type stubRepo struct {
	lastDB  persistence.Querier
	users   map[string]service.User
	created []service.User
}

func newStubRepo() *stubRepo {
	return &stubRepo{users: make(map[string]service.User)}
}

func (r *stubRepo) Create(_ context.Context, db persistence.Querier, user service.User) (service.User, error) {
	r.lastDB = db
	r.created = append(r.created, user)
	r.users[user.ID] = user
	return user, nil
}

func (r *stubRepo) Get(_ context.Context, db persistence.Querier, id string) (service.User, error) {
	r.lastDB = db
	user, ok := r.users[id]
	if !ok {
		return service.User{}, service.ErrNotFound
	}
	return user, nil
}

func (r *stubRepo) List(_ context.Context, db persistence.Querier) ([]service.User, error) {
	r.lastDB = db
	out := make([]service.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *stubRepo) Update(_ context.Context, db persistence.Querier, id string, input service.UpdateInput) (service.User, error) {
	r.lastDB = db
	user, ok := r.users[id]
	if !ok {
		return service.User{}, service.ErrNotFound
	}
	if input.FirstName != nil {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}
	r.users[id] = user
	return user, nil
}

func (r *stubRepo) Delete(_ context.Context, db persistence.Querier, id string) error {
	r.lastDB = db
	if _, ok := r.users[id]; !ok {
		return service.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *stubRepo) Count(_ context.Context, db persistence.Querier) (int64, error) {
	r.lastDB = db
	return int64(len(r.users)), nil
}

func tenantCtx(t *testing.T) (context.Context, *pgxpool.Pool) {
	t.Helper()
	pool, err := pgxpool.New(context.Background(), "postgres://u:p@127.0.0.1:5432/tenant_acme")
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return auth.WithConn(context.Background(), pool), pool
}

func TestUsersServiceRequiresRoutedConnection(t *testing.T) {
	svc := service.New(newStubRepo())

	_, err := svc.List(context.Background())
	require.ErrorIs(t, err, service.ErrNoTenantConnection)

	_, err = svc.Create(context.Background(), service.CreateInput{})
	require.ErrorIs(t, err, service.ErrNoTenantConnection)
}

func TestUsersServiceUsesConnectionFromContext(t *testing.T) {
	repo := newStubRepo()
	svc := service.New(repo)
	ctx, pool := tenantCtx(t)

	user, err := svc.Create(ctx, service.CreateInput{
		Email:     "Bob@Example.com",
		FirstName: "Bob",
		LastName:  "Jones",
	})
	require.NoError(t, err)
	require.Same(t, pool, repo.lastDB)
	require.Equal(t, "bob@example.com", user.Email)
	require.NotEmpty(t, user.ID)
}

func TestUsersServiceCreateValidation(t *testing.T) {
	svc := service.New(newStubRepo())
	ctx, _ := tenantCtx(t)

	var validation *service.ValidationError
	_, err := svc.Create(ctx, service.CreateInput{Email: "no-at-sign", FirstName: "a", LastName: "b"})
	require.ErrorAs(t, err, &validation)

	_, err = svc.Create(ctx, service.CreateInput{Email: "a@b.test"})
	require.ErrorAs(t, err, &validation)
	require.Contains(t, validation.Fields, "firstName")
	require.Contains(t, validation.Fields, "lastName")
}

func TestUsersServiceUpdate(t *testing.T) {
	repo := newStubRepo()
	svc := service.New(repo)
	ctx, _ := tenantCtx(t)

	created, err := svc.Create(ctx, service.CreateInput{
		Email: "a@b.test", FirstName: "Ann", LastName: "Lee",
	})
	require.NoError(t, err)

	newName := "Anne"
	updated, err := svc.Update(ctx, created.ID, service.UpdateInput{FirstName: &newName})
	require.NoError(t, err)
	require.Equal(t, "Anne", updated.FirstName)
	require.Equal(t, "Lee", updated.LastName)

	var validation *service.ValidationError
	_, err = svc.Update(ctx, created.ID, service.UpdateInput{})
	require.ErrorAs(t, err, &validation)

	empty := "  "
	_, err = svc.Update(ctx, created.ID, service.UpdateInput{FirstName: &empty})
	require.ErrorAs(t, err, &validation)
}

func TestUsersServiceDeleteAndCount(t *testing.T) {
	repo := newStubRepo()
	svc := service.New(repo)
	ctx, _ := tenantCtx(t)

	created, err := svc.Create(ctx, service.CreateInput{
		Email: "a@b.test", FirstName: "Ann", LastName: "Lee",
	})
	require.NoError(t, err)

	count, err := svc.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	require.NoError(t, svc.Delete(ctx, created.ID))
	require.ErrorIs(t, svc.Delete(ctx, created.ID), service.ErrNotFound)

	count, err = svc.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}
