package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/odontogram-api/pkg/errors"
)

func TestNewErrorMapsKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"not found", apperrors.NewNotFound("tooth", nil), http.StatusNotFound, "NOT_FOUND"},
		{"validation", apperrors.NewValidation("bad", nil), http.StatusBadRequest, "VALIDATION"},
		{"tooth number", apperrors.NewInvalidToothNumber(19), http.StatusBadRequest, "INVALID_TOOTH_NUMBER"},
		{"conflict", apperrors.NewConflict("dup"), http.StatusConflict, "CONFLICT"},
		{"remote", apperrors.NewRemote("op", errors.New("timeout")), http.StatusBadGateway, "REMOTE"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := NewError(tt.err, "rid")
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.kind, body.Kind)
			assert.Equal(t, "rid", body.TraceID)
		})
	}
}

func TestNewErrorHidesInternalDetail(t *testing.T) {
	_, body := NewError(errors.New("pq: password authentication failed"), "")
	assert.Equal(t, "internal server error", body.Message)
}

func TestRespondWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("request_id", "abc")

	RespondWithError(c, apperrors.NewConflict("pending treatment already assigned"))

	assert.Equal(t, http.StatusConflict, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "CONFLICT", resp.Error.Kind)
	assert.Equal(t, "abc", resp.Error.TraceID)
}
