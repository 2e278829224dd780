package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/executejs/backend/internal/app"
	"github.com/GriffinCanCode/executejs/backend/internal/execution"
	"github.com/GriffinCanCode/executejs/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/executejs/backend/internal/infrastructure/logging"
	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Registry.BaseURL = "http://127.0.0.1:1"
	cfg.Cache.Dir = t.TempDir()
	cfg.Execution.BaseDir = t.TempDir()
	cfg.Execution.Timeout = config.Duration(5 * time.Second)
	cfg.RateLimit.Enabled = false

	engine, err := app.New(cfg, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return NewServer(engine)
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestExecuteEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/execute", `{"code": "console.log('hi')"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))

	res := decode[execution.ExecutionResult](t, w)
	assert.True(t, res.Success)
	assert.Equal(t, "hi", res.Result)
	assert.Nil(t, res.Error)
	assert.Equal(t, []string{"hi"}, res.Output.Stdout)

	w = do(t, s, http.MethodPost, "/execute", `{"code": "let = ;"}`)
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[execution.ExecutionResult](t, w)
	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.True(t, strings.HasPrefix(*res.Error, "execution failed: "))
	assert.Empty(t, res.Result)

	w = do(t, s, http.MethodPost, "/execute", `{"code": "const n: number = 5; console.log(n)", "filename": "n.ts"}`)
	res = decode[execution.ExecutionResult](t, w)
	assert.True(t, res.Success, res.ErrorMessage())
	assert.Equal(t, "5", res.Result)

	w = do(t, s, http.MethodPost, "/execute", `{"code": "   "}`)
	res = decode[execution.ExecutionResult](t, w)
	assert.Equal(t, "empty code", res.ErrorMessage())
}

func TestExecuteEndpointRejectsMalformedRequests(t *testing.T) {
	s := newTestServer(t)

	for name, body := range map[string]string{
		"empty body":   "",
		"invalid json": `{"code": `,
	} {
		t.Run(name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/execute", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}

	huge := `{"code": "` + strings.Repeat("x", 2<<20) + `"}`
	w := do(t, s, http.MethodPost, "/execute", huge)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "exceeds")
}

func TestHistoryEndpoints(t *testing.T) {
	s := newTestServer(t)
	for _, code := range []string{"console.log(1)", "console.log(2)", "console.log(3)"} {
		require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/execute", `{"code": "`+code+`"}`).Code)
	}

	type history struct {
		Entries  []execution.ExecutionResult `json:"entries"`
		Count    int                         `json:"count"`
		Capacity int                         `json:"capacity"`
	}

	all := decode[history](t, do(t, s, http.MethodGet, "/history", ""))
	assert.Equal(t, 3, all.Count)
	assert.Equal(t, 100, all.Capacity)
	assert.Equal(t, "1", all.Entries[0].Result)

	last := decode[history](t, do(t, s, http.MethodGet, "/history?limit=1", ""))
	require.Len(t, last.Entries, 1)
	assert.Equal(t, "3", last.Entries[0].Result)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/history?limit=-1", "").Code)

	cleared := decode[map[string]int](t, do(t, s, http.MethodDelete, "/history", ""))
	assert.Equal(t, 3, cleared["cleared"])
	assert.Equal(t, 0, decode[history](t, do(t, s, http.MethodGet, "/history", "")).Count)
}

func TestCacheEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/cache", "")
	require.Equal(t, http.StatusOK, w.Code)
	listing := decode[map[string]any](t, w)
	assert.EqualValues(t, 0, listing["count"])

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodDelete, "/cache", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodDelete, "/cache?pattern=%5B", "").Code)

	w = do(t, s, http.MethodDelete, "/cache?pattern=**", "")
	require.Equal(t, http.StatusOK, w.Code)
	pruned := decode[map[string]any](t, w)
	assert.EqualValues(t, 0, pruned["count"])
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/execute", `{"code": "console.log('x')"}`)

	health := decode[map[string]any](t, do(t, s, http.MethodGet, "/health", ""))
	assert.Equal(t, "healthy", health["status"])
	registry := health["registry"].(map[string]any)
	assert.Equal(t, "closed", registry["breaker"])
	cache := health["cache"].(map[string]any)
	assert.Equal(t, true, cache["available"])

	w := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `executejs_executions_total{mode="script",status="success"} 1`)
	assert.Contains(t, w.Body.String(), "executejs_http_requests_total")

	w = do(t, s, http.MethodGet, "/metrics/json", "")
	require.Equal(t, http.StatusOK, w.Code)
	snapshot := decode[map[string]any](t, w)
	counters := snapshot["counters"].(map[string]any)
	assert.EqualValues(t, 1, counters["executions"])
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
