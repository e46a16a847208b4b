package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func TestOK_WritesEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]string{"k": "v"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	env := decode(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, map[string]any{"k": "v"}, env.Data)
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter)
		status int
		msg    string
	}{
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "bad") }, 400, "bad"},
		{"unauthorized", func(w http.ResponseWriter) { Unauthorized(w, "who") }, 401, "who"},
		{"forbidden", func(w http.ResponseWriter) { Forbidden(w, "no") }, 403, "no"},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "gone") }, 404, "gone"},
		{"conflict", func(w http.ResponseWriter) { Conflict(w, "dup") }, 409, "dup"},
		{"too large", func(w http.ResponseWriter) { PayloadTooLarge(w, "big") }, 413, "big"},
		{"media type", func(w http.ResponseWriter) { UnsupportedMediaType(w, "type") }, 415, "type"},
		{"internal", InternalError, 500, "internal server error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tc.write(rec)
			assert.Equal(t, tc.status, rec.Code)
			env := decode(t, rec)
			assert.False(t, env.Success)
			assert.Equal(t, tc.msg, env.Error)
		})
	}
}

func TestNewPage(t *testing.T) {
	p := NewPage[int](nil, 2, 12, 25)
	assert.Equal(t, []int{}, p.Items)
	assert.Equal(t, 3, p.TotalPages)

	assert.Equal(t, 0, NewPage([]int{1}, 1, 0, 1).TotalPages)
}
