package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"compliance/internal/complaint/models"
	"compliance/internal/platform/authz"
	"compliance/internal/platform/middleware"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/platform/httputil"
	"compliance/pkg/requestcontext"
)

type Service interface {
	Create(ctx context.Context, req *models.CreateRequest) (*models.Complaint, error)
	Update(ctx context.Context, id int64, req *models.UpdateRequest) (*models.Complaint, error)
	Get(ctx context.Context, id int64) (*models.Complaint, error)
	GetByNumber(ctx context.Context, number string) (*models.Complaint, error)
	List(ctx context.Context, f models.ListFilter) ([]*models.Complaint, error)
	Delete(ctx context.Context, id int64) (*models.Complaint, error)
	IsAssignedUser(ctx context.Context, id int64, authUserGUID string) (bool, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the complaint routes. Complaint sources and requirement
// sources are served by the reference data routes.
func (h *Handler) Register(r chi.Router) {
	creator := middleware.RequireRole(h.logger, authz.PermissionSuperuser, authz.PermissionUser)
	assigned := middleware.RequireAssignedOrRole(h.logger, h.service, "complaintID", authz.PermissionSuperuser)
	superuser := middleware.RequireRole(h.logger, authz.PermissionSuperuser)

	r.Get("/complaints", h.handleList)
	r.With(creator).Post("/complaints", h.handleCreate)
	r.Get("/complaints/complaint-numbers/{complaintNumber}", h.handleGetByNumber)
	r.Get("/complaints/{complaintID}", h.handleGet)
	r.With(assigned).Patch("/complaints/{complaintID}", h.handleUpdate)
	r.With(superuser).Delete("/complaints/{complaintID}", h.handleDelete)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var f models.ListFilter
	if raw := r.URL.Query().Get("case_file_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid case_file_id"))
			return
		}
		f.CaseFileID = &id
	}
	list, err := h.service.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, err, "failed to list complaints")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.CreateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	c, err := h.service.Create(ctx, req)
	if err != nil {
		h.fail(w, r, err, "failed to create complaint")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "complaintID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "failed to get complaint")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleGetByNumber(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetByNumber(r.Context(), chi.URLParam(r, "complaintNumber"))
	if err != nil {
		h.fail(w, r, err, "failed to get complaint by number")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httputil.IDParam(r, "complaintID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	c, err := h.service.Update(ctx, id, req)
	if err != nil {
		h.fail(w, r, err, "failed to update complaint")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "complaintID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.Delete(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "failed to delete complaint")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
