package httputil

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquidintel/taplist/pkg/fault"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	err := WriteJSON(w, 200, map[string]string{"hello": "world"})
	require.NoError(t, err)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "world", body["hello"])
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", fault.NotFound("keg", "tap %d", 3), 404},
		{"unauthorized", fault.Unauthorized("bad key"), 401},
		{"unsupported", fault.ErrUnsupported, 501},
		{"upstream", fault.Upstream("directory", errors.New("timeout")), 502},
		{"unknown", errors.New("boom"), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteDomainError(w, tt.err)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestWriteDomainError_UnauthorizedHidesReason(t *testing.T) {
	w := httptest.NewRecorder()
	WriteDomainError(w, fault.Unauthorized("client row exists but key mismatched"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unauthorized", body["error"])
	assert.NotContains(t, w.Body.String(), "mismatched")
}
