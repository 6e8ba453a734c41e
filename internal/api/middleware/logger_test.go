package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Hazard-House/openclaw/internal/api/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func serve(h http.Handler, method, target string, header http.Header) {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var out map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &out))
	return out
}

func TestLogger_Levels(t *testing.T) {
	buf := captureLog(t)
	h := middleware.Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/boom":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Write([]byte("ok"))
		}
	}))

	tests := []struct {
		path, level string
	}{
		{"/rpc", "info"},
		{"/health", "debug"},
		{"/missing", "warn"},
		{"/boom", "error"},
	}
	for _, tt := range tests {
		serve(h, http.MethodGet, tt.path, nil)
		line := lastLine(t, buf)
		assert.Equal(t, tt.level, line["level"], tt.path)
		assert.Equal(t, tt.path, line["path"])
	}
}

func TestLogger_IncludesEntity(t *testing.T) {
	buf := captureLog(t)
	h := middleware.Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	serve(h, http.MethodPost, "/rpc", http.Header{middleware.EntityHeader: {"u1"}})
	assert.Equal(t, "u1", lastLine(t, buf)["entity"])

	serve(h, http.MethodPost, "/rpc", nil)
	assert.NotContains(t, lastLine(t, buf), "entity")
}
