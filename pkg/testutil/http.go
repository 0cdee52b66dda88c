// Package testutil provides request builders and response assertions for
// handler tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewJSONRequest builds a request whose body is v encoded as JSON.
func NewJSONRequest(t *testing.T, method, path string, v any) *http.Request {
	t.Helper()

	var body bytes.Buffer
	if v != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(v), "failed to marshal request body")
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// UnmarshalResponse decodes the recorded body into a new T. The recorder's
// buffer is left unread, so several assertions can inspect one response.
func UnmarshalResponse[T any](t *testing.T, rr *httptest.ResponseRecorder) *T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "failed to unmarshal response: %s", rr.Body.String())
	return &out
}

func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, rr.Code, "unexpected status code, body: %s", rr.Body.String())
}

func AssertStatusOK(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	AssertStatus(t, rr, http.StatusOK)
}

// AssertStatusAndError checks the status and the "error" code of an error body.
func AssertStatusAndError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	AssertStatus(t, rr, status)
	body := UnmarshalResponse[map[string]string](t, rr)
	assert.Equal(t, code, (*body)["error"], "unexpected error code")
}

// AssertJSONContains checks one top-level field of a JSON object body.
func AssertJSONContains(t *testing.T, rr *httptest.ResponseRecorder, key string, expected any) {
	t.Helper()
	body := UnmarshalResponse[map[string]any](t, rr)
	assert.Equal(t, expected, (*body)[key], "unexpected value for key %q", key)
}
