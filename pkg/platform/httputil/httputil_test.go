package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	dErrors "compliance/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("conflict includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeConflict, "case file number already exists"))

		if w.Code != http.StatusConflict {
			t.Fatalf("expected status %d, got %d", http.StatusConflict, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "conflict" {
			t.Fatalf("expected error code conflict, got %q", body["error"])
		}
		if body["error_description"] != "case file number already exists" {
			t.Fatalf("expected error_description to be returned for conflict")
		}
	})

	t.Run("foreign errors render as internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, http.ErrAbortHandler)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}

type nameRequest struct {
	Name string `json:"name"`
}

func (r *nameRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))

	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"EAO"}`))
		w := httptest.NewRecorder()
		req, ok := DecodeAndPrepare[nameRequest](w, r, logger, r.Context(), "req-1")
		if !ok || req.Name != "EAO" {
			t.Fatalf("expected decoded request, got ok=%v", ok)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		w := httptest.NewRecorder()
		if _, ok := DecodeAndPrepare[nameRequest](w, r, logger, r.Context(), "req-2"); ok {
			t.Fatalf("expected failure")
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("validation failure", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":" "}`))
		w := httptest.NewRecorder()
		if _, ok := DecodeAndPrepare[nameRequest](w, r, logger, r.Context(), "req-3"); ok {
			t.Fatalf("expected failure")
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})
}

func TestIDParam(t *testing.T) {
	r := chi.NewRouter()
	var got int64
	var gotErr error
	r.Get("/case-files/{caseFileID}", func(w http.ResponseWriter, req *http.Request) {
		got, gotErr = IDParam(req, "caseFileID")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/case-files/17", nil))
	if gotErr != nil || got != 17 {
		t.Fatalf("expected 17, got %d (%v)", got, gotErr)
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/case-files/abc", nil))
	if !dErrors.HasCode(gotErr, dErrors.CodeBadRequest) {
		t.Fatalf("expected bad_request, got %v", gotErr)
	}
}
