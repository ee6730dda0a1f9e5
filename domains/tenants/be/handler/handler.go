package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/atriumhq/atrium-saas/domains/tenants/be/provisioning"
	"github.com/atriumhq/atrium-saas/domains/tenants/be/service"
	"github.com/atriumhq/atrium-saas/platform/go/logging"
)

// Handler exposes the tenant registry over HTTP. Administrative surface;
// mounted behind the gate with tenants:* permission guards.
type Handler struct {
	svc      *service.Service
	log      *zap.Logger
	validate *validator.Validate
}

func New(svc *service.Service, log *zap.Logger) *Handler {
	if svc == nil {
		panic("tenants handler requires a service")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		svc:      svc,
		log:      log,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}


type createRequest struct {
	ID   string `json:"id" validate:"required,min=1,max=63"`
	Name string `json:"name" validate:"required,min=1,max=255"`
}

type tenantResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toResponse(t service.Tenant) tenantResponse {
	return tenantResponse{
		ID:        t.ID,
		Name:      t.Name,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := h.svc.Register(r.Context(), req.ID, req.Name)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, toResponse(t))
	case errors.Is(err, service.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "tenant id not allowed")
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusConflict, "tenant already registered")
	default:
		h.writeProvisioningError(w, r, err)
	}
}

func (h *Handler) Provision(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Provision(r.Context(), chi.URLParam(r, "tenantID"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, toResponse(t))
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "tenant not found")
	default:
		h.writeProvisioningError(w, r, err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Get(r.Context(), chi.URLParam(r, "tenantID"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, toResponse(t))
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "tenant not found")
	default:
		h.serverError(w, r, err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.svc.List(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	out := make([]tenantResponse, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, toResponse(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenants": out})
}

func (h *Handler) Suspend(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.svc.Suspend)
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.svc.Activate)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) (service.Tenant, error)) {
	t, err := op(r.Context(), chi.URLParam(r, "tenantID"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, toResponse(t))
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "tenant not found")
	default:
		h.serverError(w, r, err)
	}
}

// writeProvisioningError reports a phase-identified, retryable failure to the
// administrative caller. Registration is not rolled back; re-invoking the
// provision endpoint resumes at the failed phase.
func (h *Handler) writeProvisioningError(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromRequest(r, h.log).Error("tenant provisioning failed", zap.Error(err))

	phase := "registry"
	switch {
	case errors.Is(err, provisioning.ErrStoreCreateFailed):
		phase = "store_create"
	case errors.Is(err, provisioning.ErrSchemaApplyFailed):
		phase = "schema_apply"
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"error":     "provisioning failed",
		"phase":     phase,
		"retryable": true,
	})
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromRequest(r, h.log).Error("tenant request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
