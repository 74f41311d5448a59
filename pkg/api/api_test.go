package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "analyst-backend/pkg/errors"
)

func TestError_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", pkgerrors.NewValidation("bad input"), http.StatusBadRequest, "VALIDATION"},
		{"not found", pkgerrors.NewNotFound("missing"), http.StatusNotFound, "NOT_FOUND"},
		{"access denied", pkgerrors.NewAccessDenied("not yours"), http.StatusForbidden, "ACCESS_DENIED"},
		{"agent busy", pkgerrors.NewAgentBusy("already running"), http.StatusConflict, "AGENT_BUSY"},
		{"timeout", pkgerrors.NewTimeout("deadline hit"), http.StatusGatewayTimeout, "TIMEOUT"},
		{"external", pkgerrors.NewExternal("provider down"), http.StatusBadGateway, "EXTERNAL"},
		{"internal", pkgerrors.NewInternal("boom"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestError_InternalHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, pkgerrors.NewInternal("connection string leaked"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body.Error)
	assert.NotContains(t, rec.Body.String(), "connection string")
}

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, map[string]string{"id": "abc"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":"abc"}`, rec.Body.String())

	empty := httptest.NewRecorder()
	JSON(empty, http.StatusNoContent, nil)
	assert.Equal(t, http.StatusNoContent, empty.Code)
	assert.Empty(t, empty.Body.String())
}

func TestDecode(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	var payload struct {
		Name string `json:"name"`
	}
	require.NoError(t, Decode(req, &payload))
	assert.Equal(t, "x", payload.Name)

	bad := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	err := Decode(bad, &payload)
	assert.True(t, pkgerrors.IsValidation(err))
}
