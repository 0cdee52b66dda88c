package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"compliance/internal/inspection/models"
	"compliance/internal/platform/authz"
	"compliance/internal/platform/middleware"
	staffmodels "compliance/internal/staff/models"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/platform/httputil"
	"compliance/pkg/requestcontext"
)

type Service interface {
	Create(ctx context.Context, req *models.CreateRequest) (*models.Inspection, error)
	Update(ctx context.Context, id int64, req *models.UpdateRequest) (*models.Inspection, error)
	Get(ctx context.Context, id int64) (*models.Inspection, error)
	GetByIRNumber(ctx context.Context, irNumber string) (*models.Inspection, error)
	List(ctx context.Context, f models.ListFilter) ([]*models.Inspection, error)
	Delete(ctx context.Context, id int64) (*models.Inspection, error)
	Officers(ctx context.Context, id int64) ([]staffmodels.Summary, error)
	AttendanceOptions(ctx context.Context, id int64) ([]models.Attendance, error)
	IsAssignedUser(ctx context.Context, id int64, authUserGUID string) (bool, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the inspection routes. Option lists (types, attendance,
// initiation, statuses) are served by the reference data routes.
func (h *Handler) Register(r chi.Router) {
	creator := middleware.RequireRole(h.logger, authz.PermissionSuperuser, authz.PermissionUser)
	assigned := middleware.RequireAssignedOrRole(h.logger, h.service, "inspectionID", authz.PermissionSuperuser)
	superuser := middleware.RequireRole(h.logger, authz.PermissionSuperuser)

	r.Get("/inspections", h.handleList)
	r.With(creator).Post("/inspections", h.handleCreate)
	r.Get("/inspections/ir-numbers/{irNumber}", h.handleGetByIRNumber)
	r.Get("/inspections/{inspectionID}", h.handleGet)
	r.With(assigned).Patch("/inspections/{inspectionID}", h.handleUpdate)
	r.With(superuser).Delete("/inspections/{inspectionID}", h.handleDelete)
	r.Get("/inspections/{inspectionID}/officers", h.handleOfficers)
	r.Get("/inspections/{inspectionID}/attendances", h.handleAttendances)
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
		h.fail(w, r, err, "failed to list inspections")
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
	i, err := h.service.Create(ctx, req)
	if err != nil {
		h.fail(w, r, err, "failed to create inspection")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, i)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "inspectionID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	i, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "failed to get inspection")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, i)
}

func (h *Handler) handleGetByIRNumber(w http.ResponseWriter, r *http.Request) {
	i, err := h.service.GetByIRNumber(r.Context(), chi.URLParam(r, "irNumber"))
	if err != nil {
		h.fail(w, r, err, "failed to get inspection by ir number")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, i)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httputil.IDParam(r, "inspectionID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	i, err := h.service.Update(ctx, id, req)
	if err != nil {
		h.fail(w, r, err, "failed to update inspection")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, i)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "inspectionID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	i, err := h.service.Delete(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "failed to delete inspection")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, i)
}

func (h *Handler) handleOfficers(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "inspectionID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	officers, err := h.service.Officers(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "failed to list inspection officers")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, officers)
}

func (h *Handler) handleAttendances(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "inspectionID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	attendances, err := h.service.AttendanceOptions(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "failed to list inspection attendances")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, attendances)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
