// Package httputil holds the JSON response and request helpers shared by handlers.
package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	dErrors "compliance/pkg/domain-errors"
)

// Validatable is implemented by request bodies that normalise and check themselves.
type Validatable interface {
	Validate() error
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders a domain error. Internal errors never expose their message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := errorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		resp.ErrorDescription = dErrors.MessageOf(err)
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), resp)
}

// DecodeAndPrepare decodes the JSON body into T and validates it. On failure the
// error response is written and ok is false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (PT, bool) {
	req := PT(new(T))
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		logger.WarnContext(ctx, "failed to decode request",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	if err := req.Validate(); err != nil {
		logger.WarnContext(ctx, "invalid request",
			"error", err,
			"request_id", requestID,
		)
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			err = dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
		}
		WriteError(w, err)
		return nil, false
	}
	return req, true
}

// IDParam parses a positive integer chi URL parameter.
func IDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid "+name)
	}
	return id, nil
}
