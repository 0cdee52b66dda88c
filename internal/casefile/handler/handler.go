package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"compliance/internal/casefile/models"
	"compliance/internal/platform/authz"
	"compliance/internal/platform/middleware"
	staffmodels "compliance/internal/staff/models"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/platform/httputil"
	"compliance/pkg/requestcontext"
)

type Service interface {
	Create(ctx context.Context, req *models.CreateRequest) (*models.CaseFile, error)
	Update(ctx context.Context, id int64, req *models.UpdateRequest) (*models.CaseFile, error)
	Get(ctx context.Context, id int64) (*models.CaseFile, error)
	GetByNumber(ctx context.Context, number string) (*models.CaseFile, error)
	List(ctx context.Context, projectID *int64) ([]*models.CaseFile, error)
	Delete(ctx context.Context, id int64) (*models.CaseFile, error)
	Officers(ctx context.Context, id int64) ([]staffmodels.Summary, error)
	IsAssignedUser(ctx context.Context, id int64, authUserGUID string) (bool, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the case file routes. The initiation option list lives with
// the reference data routes.
func (h *Handler) Register(r chi.Router) {
	creator := middleware.RequireRole(h.logger, authz.PermissionSuperuser, authz.PermissionUser)
	assigned := middleware.RequireAssignedOrRole(h.logger, h.service, "caseFileID", authz.PermissionSuperuser)
	superuser := middleware.RequireRole(h.logger, authz.PermissionSuperuser)

	r.Get("/case-files", h.handleList)
	r.With(creator).Post("/case-files", h.handleCreate)
	r.Get("/case-files/case-file-numbers/{caseFileNumber}", h.handleGetByNumber)
	r.Get("/case-files/{caseFileID}", h.handleGet)
	r.With(assigned).Patch("/case-files/{caseFileID}", h.handleUpdate)
	r.With(superuser).Delete("/case-files/{caseFileID}", h.handleDelete)
	r.Get("/case-files/{caseFileID}/officers", h.handleOfficers)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var projectID *int64
	if raw := r.URL.Query().Get("project_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid project_id"))
			return
		}
		projectID = &id
	}
	files, err := h.service.List(r.Context(), projectID)
	if err != nil {
		h.fail(w, r, err, "failed to list case files")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, files)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.CreateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	cf, err := h.service.Create(ctx, req)
	if err != nil {
		h.fail(w, r, err, "failed to create case file")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, cf)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "caseFileID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cf, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "failed to get case file")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cf)
}

func (h *Handler) handleGetByNumber(w http.ResponseWriter, r *http.Request) {
	cf, err := h.service.GetByNumber(r.Context(), chi.URLParam(r, "caseFileNumber"))
	if err != nil {
		h.fail(w, r, err, "failed to get case file by number")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cf)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httputil.IDParam(r, "caseFileID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	cf, err := h.service.Update(ctx, id, req)
	if err != nil {
		h.fail(w, r, err, "failed to update case file")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cf)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "caseFileID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cf, err := h.service.Delete(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "failed to delete case file")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cf)
}

func (h *Handler) handleOfficers(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "caseFileID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	officers, err := h.service.Officers(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "failed to list case file officers")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, officers)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
