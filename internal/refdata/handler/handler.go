package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"compliance/internal/platform/authz"
	"compliance/internal/platform/middleware"
	"compliance/internal/refdata/models"
	"compliance/pkg/domain"
	"compliance/pkg/platform/httputil"
	"compliance/pkg/requestcontext"
)

// Service is the reference data surface the handler needs.
type Service interface {
	ListAgencies(ctx context.Context) ([]*models.Agency, error)
	GetAgency(ctx context.Context, id int64) (*models.Agency, error)
	CreateAgency(ctx context.Context, req *models.AgencyRequest) (*models.Agency, error)
	UpdateAgency(ctx context.Context, id int64, req *models.AgencyRequest) (*models.Agency, error)
	DeleteAgency(ctx context.Context, id int64) (*models.Agency, error)

	ListTopics(ctx context.Context) ([]*models.Topic, error)
	GetTopic(ctx context.Context, id int64) (*models.Topic, error)
	CreateTopic(ctx context.Context, req *models.TopicRequest) (*models.Topic, error)
	UpdateTopic(ctx context.Context, id int64, req *models.TopicRequest) (*models.Topic, error)
	DeleteTopic(ctx context.Context, id int64) (*models.Topic, error)

	ListPositions(ctx context.Context) ([]*models.Position, error)
	GetPosition(ctx context.Context, id int64) (*models.Position, error)
	ListRequirementSources(ctx context.Context) ([]*models.RequirementSource, error)
	Options(ctx context.Context, kind models.OptionKind) ([]domain.Option, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the reference data routes. r is expected to be authenticated.
func (h *Handler) Register(r chi.Router) {
	superuser := middleware.RequireRole(h.logger, authz.PermissionSuperuser)

	r.Get("/agencies", h.handleListAgencies)
	r.With(superuser).Post("/agencies", h.handleCreateAgency)
	r.Get("/agencies/{agencyID}", h.handleGetAgency)
	r.With(superuser).Patch("/agencies/{agencyID}", h.handleUpdateAgency)
	r.With(superuser).Delete("/agencies/{agencyID}", h.handleDeleteAgency)

	r.Get("/topics", h.handleListTopics)
	r.With(superuser).Post("/topics", h.handleCreateTopic)
	r.Get("/topics/{topicID}", h.handleGetTopic)
	r.With(superuser).Patch("/topics/{topicID}", h.handleUpdateTopic)
	r.With(superuser).Delete("/topics/{topicID}", h.handleDeleteTopic)

	r.Get("/positions", h.handleListPositions)
	r.Get("/positions/{positionID}", h.handleGetPosition)
	r.Get("/requirement-sources", h.handleListRequirementSources)
	r.Get("/complaints/requirement-sources", h.handleListRequirementSources)

	r.Get("/project-status-options", h.options(models.OptionProjectStatus))
	r.Get("/case-files/initiation-options", h.options(models.OptionCaseFileInitiation))
	r.Get("/inspections/attendance-options", h.options(models.OptionInspectionAttendance))
	r.Get("/inspections/type-options", h.options(models.OptionInspectionType))
	r.Get("/inspections/initiation-options", h.options(models.OptionInspectionInitiation))
	r.Get("/inspections/ir-status-options", h.options(models.OptionIRStatus))
	r.Get("/complaints/sources", h.options(models.OptionComplaintSource))
}

func (h *Handler) handleListAgencies(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListAgencies(r.Context())
	h.respond(w, r, http.StatusOK, out, err, "failed to list agencies")
}

func (h *Handler) handleGetAgency(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "agencyID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out, err := h.service.GetAgency(r.Context(), id)
	h.respond(w, r, http.StatusOK, out, err, "failed to get agency")
}

func (h *Handler) handleCreateAgency(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.AgencyRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	out, err := h.service.CreateAgency(ctx, req)
	h.respond(w, r, http.StatusCreated, out, err, "failed to create agency")
}

func (h *Handler) handleUpdateAgency(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httputil.IDParam(r, "agencyID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.AgencyRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	out, err := h.service.UpdateAgency(ctx, id, req)
	h.respond(w, r, http.StatusOK, out, err, "failed to update agency")
}

func (h *Handler) handleDeleteAgency(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "agencyID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out, err := h.service.DeleteAgency(r.Context(), id)
	h.respond(w, r, http.StatusOK, out, err, "failed to delete agency")
}

func (h *Handler) handleListTopics(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListTopics(r.Context())
	h.respond(w, r, http.StatusOK, out, err, "failed to list topics")
}

func (h *Handler) handleGetTopic(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "topicID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out, err := h.service.GetTopic(r.Context(), id)
	h.respond(w, r, http.StatusOK, out, err, "failed to get topic")
}

func (h *Handler) handleCreateTopic(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.TopicRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	out, err := h.service.CreateTopic(ctx, req)
	h.respond(w, r, http.StatusCreated, out, err, "failed to create topic")
}

func (h *Handler) handleUpdateTopic(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httputil.IDParam(r, "topicID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.TopicRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	out, err := h.service.UpdateTopic(ctx, id, req)
	h.respond(w, r, http.StatusOK, out, err, "failed to update topic")
}

func (h *Handler) handleDeleteTopic(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "topicID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out, err := h.service.DeleteTopic(r.Context(), id)
	h.respond(w, r, http.StatusOK, out, err, "failed to delete topic")
}

func (h *Handler) handleListPositions(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListPositions(r.Context())
	h.respond(w, r, http.StatusOK, out, err, "failed to list positions")
}

func (h *Handler) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "positionID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out, err := h.service.GetPosition(r.Context(), id)
	h.respond(w, r, http.StatusOK, out, err, "failed to get position")
}

func (h *Handler) handleListRequirementSources(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListRequirementSources(r.Context())
	h.respond(w, r, http.StatusOK, out, err, "failed to list requirement sources")
}

func (h *Handler) options(kind models.OptionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := h.service.Options(r.Context(), kind)
		h.respond(w, r, http.StatusOK, out, err, "failed to list options")
	}
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, body any, err error, msg string) {
	if err != nil {
		ctx := r.Context()
		h.logger.WarnContext(ctx, msg,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, status, body)
}
