package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/atriumhq/atrium-saas/domains/users/be/handler"
	"github.com/atriumhq/atrium-saas/domains/users/be/repo"
	"github.com/atriumhq/atrium-saas/domains/users/be/service"
	"github.com/atriumhq/atrium-saas/platform/go/auth"
)

func newAuthServer(t *testing.T) (*httptest.Server, *auth.Codec) {
	t.Helper()

	codec := auth.NewCodec(auth.CodecConfig{Secret: []byte("test-secret")})
	creds := service.NewCredentialService(service.CredentialConfig{
		Repo:       repo.NewCredentialsMemory(),
		Codec:      codec,
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
	})

	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		handler.NewAuthHandler(creds, zap.NewNop()).Mount(r)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, codec
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	srv, codec := newAuthServer(t)

	resp := postJSON(t, srv.URL+"/auth/register", map[string]string{
		"tenant_id": "acme",
		"email":     "alice@example.com",
		"password":  "hunter2-long",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var registered struct {
		ID          string   `json:"id"`
		TenantID    string   `json:"tenant_id"`
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&registered))
	require.Equal(t, "acme", registered.TenantID)
	require.Equal(t, []string{"users:read", "users:write"}, registered.Permissions)

	resp = postJSON(t, srv.URL+"/auth/login", map[string]string{
		"tenant_id": "acme",
		"email":     "alice@example.com",
		"password":  "hunter2-long",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login struct {
		Token     string `json:"token"`
		TokenType string `json:"token_type"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	require.Equal(t, "Bearer", login.TokenType)

	claims, err := codec.Verify(login.Token)
	require.NoError(t, err)
	require.Equal(t, registered.ID, claims.UserID)
	require.Equal(t, "acme", claims.TenantID)
}

func TestRegisterRejectsBadPayload(t *testing.T) {
	srv, _ := newAuthServer(t)

	for name, body := range map[string]map[string]string{
		"missing tenant": {"email": "a@b.test", "password": "hunter2-long"},
		"bad email":      {"tenant_id": "acme", "email": "nope", "password": "hunter2-long"},
		"short password": {"tenant_id": "acme", "email": "a@b.test", "password": "short"},
	} {
		resp := postJSON(t, srv.URL+"/auth/register", body)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
	}
}

func TestRegisterConflict(t *testing.T) {
	srv, _ := newAuthServer(t)
	body := map[string]string{
		"tenant_id": "acme",
		"email":     "alice@example.com",
		"password":  "hunter2-long",
	}

	resp := postJSON(t, srv.URL+"/auth/register", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/auth/register", body)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	srv, _ := newAuthServer(t)

	resp := postJSON(t, srv.URL+"/auth/register", map[string]string{
		"tenant_id": "acme",
		"email":     "alice@example.com",
		"password":  "hunter2-long",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/auth/login", map[string]string{
		"tenant_id": "acme",
		"email":     "alice@example.com",
		"password":  "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/auth/login", map[string]string{
		"tenant_id": "globex",
		"email":     "alice@example.com",
		"password":  "hunter2-long",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
