package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nonFlusher hides the recorder's Flush method.
type nonFlusher struct {
	http.ResponseWriter
}

func TestSSEWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	sse, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, sse.WriteEvent("progress", map[string]float64{"percent": 42}))
	require.NoError(t, sse.WriteComment("keep-alive"))
	sse.WriteError("run was evicted")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t,
		"event: progress\ndata: {\"percent\":42}\n\n"+
			": keep-alive\n\n"+
			"event: error\ndata: {\"error\":\"run was evicted\"}\n\n",
		rec.Body.String())
}

func TestSSEWriter_RequiresFlusher(t *testing.T) {
	_, err := NewSSEWriter(nonFlusher{httptest.NewRecorder()})
	assert.Error(t, err)
}
