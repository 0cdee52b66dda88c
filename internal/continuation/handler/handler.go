package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"compliance/internal/continuation/models"
	"compliance/internal/platform/authz"
	"compliance/internal/platform/middleware"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/platform/httputil"
	"compliance/pkg/requestcontext"
)

type Service interface {
	Create(ctx context.Context, req *models.CreateRequest) (*models.Report, error)
	Update(ctx context.Context, id int64, req *models.UpdateRequest) (*models.Report, error)
	Get(ctx context.Context, id int64) (*models.Report, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Report, error)
	Delete(ctx context.Context, id int64) (*models.Report, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	writer := middleware.RequireRole(h.logger, authz.PermissionSuperuser, authz.PermissionUser)
	superuser := middleware.RequireRole(h.logger, authz.PermissionSuperuser)

	r.Get("/continuation-reports", h.handleList)
	r.With(writer).Post("/continuation-reports", h.handleCreate)
	r.Get("/continuation-reports/{reportID}", h.handleGet)
	r.With(writer).Patch("/continuation-reports/{reportID}", h.handleUpdate)
	r.With(superuser).Delete("/continuation-reports/{reportID}", h.handleDelete)
}

// handleList serves ?case_file_id=..[&context_type=..&context_id=..].
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	caseFileID, err := strconv.ParseInt(q.Get("case_file_id"), 10, 64)
	if err != nil || caseFileID <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "case_file_id query parameter is required"))
		return
	}
	filter := models.ListFilter{CaseFileID: caseFileID, ContextType: models.ContextType(q.Get("context_type"))}
	if raw := q.Get("context_id"); raw != "" {
		filter.ContextID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid context_id"))
			return
		}
	}

	reports, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err, "failed to list continuation report")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reports)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.CreateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	report, err := h.service.Create(ctx, req)
	if err != nil {
		h.fail(w, r, err, "failed to create continuation report entry")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, report)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "reportID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "failed to get continuation report entry")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httputil.IDParam(r, "reportID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	report, err := h.service.Update(ctx, id, req)
	if err != nil {
		h.fail(w, r, err, "failed to update continuation report entry")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "reportID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := h.service.Delete(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "failed to delete continuation report entry")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
