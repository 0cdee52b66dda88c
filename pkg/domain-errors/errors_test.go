package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	base := New(CodeNotFound, "case file not found")
	wrapped := fmt.Errorf("load: %w", base)

	assert.True(t, HasCode(base, CodeNotFound))
	assert.True(t, HasCode(wrapped, CodeNotFound))
	assert.False(t, HasCode(wrapped, CodeConflict))
	assert.False(t, HasCode(errors.New("plain"), CodeNotFound))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodeUpstream, "project registry unavailable")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeUpstream, CodeOf(err))
	assert.Equal(t, "project registry unavailable", MessageOf(err))
	assert.Equal(t, CodeInternal, CodeOf(cause))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeNotFound:      http.StatusNotFound,
		CodeConflict:      http.StatusConflict,
		CodeValidation:    http.StatusBadRequest,
		CodeUnprocessable: http.StatusUnprocessableEntity,
		CodeForbidden:     http.StatusForbidden,
		CodeUpstream:      http.StatusBadGateway,
		CodeInternal:      http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, ToHTTPStatus(code), "code %s", code)
	}
}
