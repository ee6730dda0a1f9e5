package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/atriumhq/atrium-saas/domains/users/be/service"
	"github.com/atriumhq/atrium-saas/platform/go/logging"
)

// AuthHandler serves the public registration and login endpoints. These run
// against the control-plane credential store, before any tenant routing.
type AuthHandler struct {
	creds    *service.CredentialService
	log      *zap.Logger
	validate *validator.Validate
}

func NewAuthHandler(creds *service.CredentialService, log *zap.Logger) *AuthHandler {
	if creds == nil {
		panic("auth handler requires a credential service")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{
		creds:    creds,
		log:      log,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Mount attaches the auth routes to the given router.
func (h *AuthHandler) Mount(r chi.Router) {
	r.Post("/register", h.register)
	r.Post("/login", h.login)
}

type registerRequest struct {
	TenantID string `json:"tenant_id" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	TenantID string `json:"tenant_id" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cred, err := h.creds.Register(r.Context(), req.TenantID, req.Email, req.Password)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":          cred.ID,
		"tenant_id":   cred.TenantID,
		"email":       cred.Email,
		"permissions": cred.Permissions,
	})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.creds.Login(r.Context(), req.TenantID, req.Email, req.Password)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token":      token,
		"token_type": "Bearer",
	})
}

func (h *AuthHandler) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *service.ValidationError
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation error",
			"fields": validation.Fields,
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, service.ErrCredentialConflict):
		writeError(w, http.StatusConflict, "email already registered")
	default:
		logging.FromRequest(r, h.log).Error("auth request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
