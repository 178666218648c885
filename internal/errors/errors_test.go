package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError_ImplementsError(t *testing.T) {
	err := New(http.StatusBadRequest, "INVALID_REQUEST", "bad input")
	assert.Equal(t, "bad input", err.Error())
}

func TestAPIError_RenderSetsStatus(t *testing.T) {
	apiErr := NewWithDetails(http.StatusConflict, "RUN_IN_PROGRESS", "busy", "run abc")

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, render.Render(w, r, apiErr))

	assert.Equal(t, http.StatusConflict, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "RUN_IN_PROGRESS", body["error_code"])
	assert.Equal(t, "run abc", body["details"])
}

func TestRunInProgressError_CarriesRunID(t *testing.T) {
	err := RunInProgressError("run abc")
	assert.Equal(t, http.StatusConflict, err.StatusCode)
	assert.Equal(t, "RUN_IN_PROGRESS", err.ErrorCode)
	assert.Equal(t, "run abc", err.Details)
}

func TestNotFoundError(t *testing.T) {
	err := NotFoundError("run")
	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.Equal(t, "run not found", err.Message)
}
