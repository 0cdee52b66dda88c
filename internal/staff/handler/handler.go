package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"compliance/internal/platform/authz"
	"compliance/internal/platform/middleware"
	"compliance/internal/staff/models"
	"compliance/pkg/platform/httputil"
	"compliance/pkg/requestcontext"
)

type Service interface {
	Create(ctx context.Context, req *models.CreateRequest) (*models.StaffUser, error)
	Update(ctx context.Context, id int64, req *models.UpdateRequest) (*models.StaffUser, error)
	Get(ctx context.Context, id int64) (*models.StaffUser, error)
	List(ctx context.Context) ([]*models.StaffUser, error)
	Delete(ctx context.Context, id int64) (*models.StaffUser, error)
	PermissionLevels() []models.PermissionLevel
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	superuser := middleware.RequireRole(h.logger, authz.PermissionSuperuser)

	r.Get("/staff-users", h.handleList)
	r.With(superuser).Post("/staff-users", h.handleCreate)
	r.Get("/staff-users/permissions", h.handlePermissions)
	r.Get("/staff-users/{userID}", h.handleGet)
	r.With(superuser).Patch("/staff-users/{userID}", h.handleUpdate)
	r.With(superuser).Delete("/staff-users/{userID}", h.handleDelete)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, r, err, "failed to list staff users")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.CreateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	u, err := h.service.Create(ctx, req)
	if err != nil {
		h.fail(w, r, err, "failed to create staff user")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, u)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "userID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	u, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "failed to get staff user")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httputil.IDParam(r, "userID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	u, err := h.service.Update(ctx, id, req)
	if err != nil {
		h.fail(w, r, err, "failed to update staff user")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "userID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	u, err := h.service.Delete(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "failed to delete staff user")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) handlePermissions(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.PermissionLevels())
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
