package server

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gorilincode/backend/internal/infrastructure/config"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Logging.Development = true
	cfg.RateLimit.Enabled = false

	s, err := NewServer(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestServerRoutes(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := `{"source":"console.log('hola')"}`
	resp, err = http.Post(srv.URL+"/lessons/1/run", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "gorilin_runs_total")
}

func TestServerCompressesResponses(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/lessons", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")

	// A bare transport leaves the encoding to us
	resp, err := (&http.Transport{DisableCompression: true}).RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))

	zr, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) || bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")))
}

func TestServerStream(t *testing.T) {
	srv := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer c.Close()

	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	var ev map[string]any
	require.NoError(t, sonic.Unmarshal(data, &ev))
	assert.Equal(t, "connected", ev["type"])
}

func TestCheckOrigin(t *testing.T) {
	assert.Nil(t, checkOrigin([]string{"*"}))
	assert.Nil(t, checkOrigin(nil))

	check := checkOrigin([]string{"https://gorilin.dev"})
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://gorilin.dev")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))
}
