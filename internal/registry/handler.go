package registry

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"compliance/pkg/platform/httputil"
	"compliance/pkg/requestcontext"
)

// Handler proxies project lookups so clients see the same view the
// lifecycle services use.
type Handler struct {
	registry Registry
	logger   *slog.Logger
}

func NewHandler(registry Registry, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/projects", h.handleListProjects)
	r.Get("/projects/{projectID}", h.handleGetProject)
	r.Get("/first-nations/{firstNationID}", h.handleGetFirstNation)
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.registry.ListProjects(r.Context())
	if err != nil {
		h.fail(w, r, err, "failed to list projects")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, projects)
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "projectID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.registry.GetProject(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "failed to get project")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleGetFirstNation(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.IDParam(r, "firstNationID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	fn, err := h.registry.GetFirstNation(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "failed to get first nation")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fn)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
