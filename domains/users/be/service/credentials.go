package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/atriumhq/atrium-saas/platform/go/auth"
)

// Credential sentinel errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrCredentialConflict = errors.New("credential already registered")
)

// DefaultPermissions are granted to every self-registered account.
var DefaultPermissions = []string{"users:read", "users:write"}

// Credential is a login identity stored in the control-plane database.
// The password hash never leaves this package.
type Credential struct {
	ID           string
	TenantID     string
	Email        string
	PasswordHash string
	Permissions  []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CredentialRepository persists credentials in the control-plane store.
type CredentialRepository interface {
	Create(ctx context.Context, cred Credential) (Credential, error)
	GetByEmail(ctx context.Context, tenantID, email string) (Credential, error)
}

// CredentialService handles account registration and login. Login failures
// are reported uniformly so callers cannot distinguish an unknown account
// from a wrong password.
type CredentialService struct {
	repo  CredentialRepository
	codec *auth.Codec
	ttl   time.Duration
	cost  int
}

// CredentialConfig carries the dependencies for NewCredentialService.
type CredentialConfig struct {
	Repo     CredentialRepository
	Codec    *auth.Codec
	TokenTTL time.Duration

	// BcryptCost overrides the hashing cost. Zero means bcrypt.DefaultCost;
	// tests lower it to bcrypt.MinCost.
	BcryptCost int
}

func NewCredentialService(cfg CredentialConfig) *CredentialService {
	if cfg.Repo == nil {
		panic("credential service requires a repository")
	}
	if cfg.Codec == nil {
		panic("credential service requires a token codec")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &CredentialService{repo: cfg.Repo, codec: cfg.Codec, ttl: ttl, cost: cost}
}

// Register creates a credential with the default permission set.
func (s *CredentialService) Register(ctx context.Context, tenantID, email, password string) (Credential, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return Credential{}, newValidationError(map[string]string{"email": "a valid email is required"})
	}
	if len(password) < 8 {
		return Credential{}, newValidationError(map[string]string{"password": "password must be at least 8 characters"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Credential{}, fmt.Errorf("hashing password: %w", err)
	}

	cred, err := s.repo.Create(ctx, Credential{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		Email:        email,
		PasswordHash: string(hash),
		Permissions:  append([]string(nil), DefaultPermissions...),
	})
	if err != nil {
		return Credential{}, err
	}
	cred.PasswordHash = ""
	return cred, nil
}

// Login verifies the password and issues a signed token carrying the
// credential's tenant and permissions.
func (s *CredentialService) Login(ctx context.Context, tenantID, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	cred, err := s.repo.GetByEmail(ctx, tenantID, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("loading credential: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	token, err := s.codec.Issue(cred.ID, cred.TenantID, cred.Permissions, s.ttl)
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}
	return token, nil
}
