package export

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/perflog/internal/logger"
	"github.com/wesleyorama2/perflog/internal/metrics"
	"github.com/wesleyorama2/perflog/internal/perflog"
)

func newTestServer(t *testing.T) (*Server, *perflog.Engine) {
	t.Helper()
	engine := perflog.New(perflog.DefaultConfig(), perflog.WithLogger(logger.Discard()))
	engine.Increase("db.query", 12, false, metrics.TypeTimer)
	engine.AddStatistic("rows", 3)

	s, err := NewServer("127.0.0.1:0", engine, logger.Discard())
	require.NoError(t, err)
	return s, engine
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServer_Metrics(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `perflog_call_count{object="perflog:type=Timer,name=db.query"} 1`)
	assert.Contains(t, body, `perflog_count{object="perflog:type=Statistic,name=rows,window=1m"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestServer_Dump(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		target      string
		contentType string
		contains    string
	}{
		{"/dump", "application/json", `"name": "db.query"`},
		{"/dump?format=yaml", "application/yaml", "name: rows"},
		{"/dump?format=csv", "text/csv; charset=utf-8", "db.query,1,12.00,12,12"},
		{"/dump?format=table", "text/plain; charset=utf-8", "rows"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, s.Handler(), tt.target)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}

func TestServer_DumpErrors(t *testing.T) {
	s, _ := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, get(t, s.Handler(), "/dump?format=xml").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/dump?query=missing.path").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, httpDo(t, s.Handler(), http.MethodPost, "/dump").Code)
}

func TestServer_DumpQuery(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s.Handler(), `/dump?query=logs.%23(name==%22rows%22).numCalls`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", strings.TrimSpace(rec.Body.String()))

	rec = get(t, s.Handler(), "/dump?query=$.enabled")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", strings.TrimSpace(rec.Body.String()))
}

func TestServer_Healthz(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestServer_Serve(t *testing.T) {
	s, _ := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/healthz")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok\n", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}

func httpDo(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}
