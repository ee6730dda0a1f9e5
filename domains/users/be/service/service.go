package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atriumhq/atrium-saas/platform/go/auth"
	"github.com/atriumhq/atrium-saas/platform/go/persistence"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Domain sentinel errors.
var (
	ErrNotFound = errors.New("user not found")
	ErrConflict = errors.New("user conflict")

	// ErrNoTenantConnection means the request reached the service without a
	// routed tenant database handle on its context.
	ErrNoTenantConnection = errors.New("no tenant connection on context")
)

// User represents a record in the calling tenant's own database.
type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateInput represents the payload required to create a new user.
type CreateInput struct {
	Email     string
	FirstName string
	LastName  string
}

// UpdateInput encapsulates the fields that can be modified.
type UpdateInput struct {
	FirstName *string
	LastName  *string
}

// Repository persists users in a tenant database. Every call receives the
// handle routed for the request; the repository itself holds no connection.
type Repository interface {
	Create(ctx context.Context, db persistence.Querier, user User) (User, error)
	Get(ctx context.Context, db persistence.Querier, id string) (User, error)
	List(ctx context.Context, db persistence.Querier) ([]User, error)
	Update(ctx context.Context, db persistence.Querier, id string, input UpdateInput) (User, error)
	Delete(ctx context.Context, db persistence.Querier, id string) error
	Count(ctx context.Context, db persistence.Querier) (int64, error)
}

// Service defines the business operations for tenant users. All operations
// run against the database of the tenant authenticated on the context.
type Service interface {
	Create(ctx context.Context, input CreateInput) (User, error)
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id string) (User, error)
	Update(ctx context.Context, id string, input UpdateInput) (User, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

type service struct {
	repo Repository
}

// New constructs a users Service backed by the provided repository.
func New(r Repository) Service {
	if r == nil {
		panic("users repository is required")
	}
	return &service{repo: r}
}

func (s *service) Create(ctx context.Context, input CreateInput) (User, error) {
	db, err := tenantDB(ctx)
	if err != nil {
		return User{}, err
	}

	fieldErrors := FieldErrors{}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		fieldErrors.add("email", "email is required")
	} else if !strings.Contains(email, "@") {
		fieldErrors.add("email", "email must contain '@'")
	}

	firstName := strings.TrimSpace(input.FirstName)
	if firstName == "" {
		fieldErrors.add("firstName", "firstName is required")
	}
	lastName := strings.TrimSpace(input.LastName)
	if lastName == "" {
		fieldErrors.add("lastName", "lastName is required")
	}

	if len(fieldErrors) > 0 {
		return User{}, &ValidationError{Fields: fieldErrors}
	}

	return s.repo.Create(ctx, db, User{
		ID:        uuid.NewString(),
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
	})
}

func (s *service) List(ctx context.Context) ([]User, error) {
	db, err := tenantDB(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, db)
}

func (s *service) Get(ctx context.Context, id string) (User, error) {
	db, err := tenantDB(ctx)
	if err != nil {
		return User{}, err
	}
	if strings.TrimSpace(id) == "" {
		return User{}, ErrNotFound
	}
	return s.repo.Get(ctx, db, id)
}

func (s *service) Update(ctx context.Context, id string, input UpdateInput) (User, error) {
	db, err := tenantDB(ctx)
	if err != nil {
		return User{}, err
	}
	if strings.TrimSpace(id) == "" {
		return User{}, ErrNotFound
	}

	fieldErrors := FieldErrors{}
	fieldsSet := 0

	if input.FirstName != nil {
		name := strings.TrimSpace(*input.FirstName)
		if name == "" {
			fieldErrors.add("firstName", "firstName cannot be empty")
		} else {
			input.FirstName = &name
			fieldsSet++
		}
	}
	if input.LastName != nil {
		name := strings.TrimSpace(*input.LastName)
		if name == "" {
			fieldErrors.add("lastName", "lastName cannot be empty")
		} else {
			input.LastName = &name
			fieldsSet++
		}
	}
	if fieldsSet == 0 && len(fieldErrors) == 0 {
		fieldErrors.add("payload", "at least one field must be provided")
	}
	if len(fieldErrors) > 0 {
		return User{}, &ValidationError{Fields: fieldErrors}
	}

	return s.repo.Update(ctx, db, id, input)
}

func (s *service) Delete(ctx context.Context, id string) error {
	db, err := tenantDB(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return ErrNotFound
	}
	return s.repo.Delete(ctx, db, id)
}

func (s *service) Count(ctx context.Context) (int64, error) {
	db, err := tenantDB(ctx)
	if err != nil {
		return 0, err
	}
	return s.repo.Count(ctx, db)
}

func tenantDB(ctx context.Context) (persistence.Querier, error) {
	pool, ok := auth.ConnFromContext(ctx)
	if !ok {
		return nil, ErrNoTenantConnection
	}
	return pool, nil
}

func newValidationError(fields map[string]string) error {
	fe := FieldErrors{}
	for key, message := range fields {
		fe.add(key, message)
	}
	return &ValidationError{Fields: fe}
}

func (f FieldErrors) add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}
