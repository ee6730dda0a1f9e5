package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/atriumhq/atrium-saas/domains/users/be/repo"
	"github.com/atriumhq/atrium-saas/domains/users/be/service"
	"github.com/atriumhq/atrium-saas/platform/go/auth"
)

func newCredentialService(t *testing.T) (*service.CredentialService, *auth.Codec) {
	t.Helper()
	codec := auth.NewCodec(auth.CodecConfig{Secret: []byte("test-secret")})
	svc := service.NewCredentialService(service.CredentialConfig{
		Repo:       repo.NewCredentialsMemory(),
		Codec:      codec,
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
	})
	return svc, codec
}

func TestRegisterGrantsDefaultPermissions(t *testing.T) {
	svc, _ := newCredentialService(t)

	cred, err := svc.Register(context.Background(), "acme", "Alice@Example.com", "hunter2-long")
	require.NoError(t, err)
	require.Equal(t, "acme", cred.TenantID)
	require.Equal(t, "alice@example.com", cred.Email, "email is normalized")
	require.Equal(t, []string{"users:read", "users:write"}, cred.Permissions)
	require.Empty(t, cred.PasswordHash, "hash never leaves the service")
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newCredentialService(t)

	var validation *service.ValidationError

	_, err := svc.Register(context.Background(), "acme", "not-an-email", "hunter2-long")
	require.ErrorAs(t, err, &validation)

	_, err = svc.Register(context.Background(), "acme", "a@b.test", "short")
	require.ErrorAs(t, err, &validation)
}

func TestRegisterDuplicateEmailSameTenant(t *testing.T) {
	svc, _ := newCredentialService(t)

	_, err := svc.Register(context.Background(), "acme", "a@b.test", "hunter2-long")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "acme", "a@b.test", "hunter2-long")
	require.ErrorIs(t, err, service.ErrCredentialConflict)

	// Same email under another tenant is a distinct credential.
	_, err = svc.Register(context.Background(), "globex", "a@b.test", "hunter2-long")
	require.NoError(t, err)
}

func TestLoginIssuesTokenWithTenantClaims(t *testing.T) {
	svc, codec := newCredentialService(t)

	cred, err := svc.Register(context.Background(), "acme", "a@b.test", "hunter2-long")
	require.NoError(t, err)

	token, err := svc.Login(context.Background(), "acme", "a@b.test", "hunter2-long")
	require.NoError(t, err)

	claims, err := codec.Verify(token)
	require.NoError(t, err)
	require.Equal(t, cred.ID, claims.UserID)
	require.Equal(t, "acme", claims.TenantID)
	require.Equal(t, []string{"users:read", "users:write"}, claims.Permissions)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	svc, _ := newCredentialService(t)

	_, err := svc.Register(context.Background(), "acme", "a@b.test", "hunter2-long")
	require.NoError(t, err)

	// Wrong password, unknown user and wrong tenant all read the same.
	_, err = svc.Login(context.Background(), "acme", "a@b.test", "wrong-password")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "acme", "ghost@b.test", "hunter2-long")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "globex", "a@b.test", "hunter2-long")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}
