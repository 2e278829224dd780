package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsUsePrivateRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordExecution("script", StatusSuccess, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.ExecutionsTotal.WithLabelValues("script", StatusSuccess)))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ExecutionsTotal.WithLabelValues("script", StatusSuccess)))
}

func TestStartExecution(t *testing.T) {
	m := NewMetrics()

	done := m.StartExecution()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExecutionsActive))
	done("module", StatusFailure, 250*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ExecutionsActive))

	snap := m.Snapshot()
	assert.EqualValues(t, 1, snap.Executions)
	assert.EqualValues(t, 1, snap.FailedExecutions)
	assert.InDelta(t, 0.25, snap.ExecutionSeconds, 1e-9)
}

func TestRecordInstall(t *testing.T) {
	m := NewMetrics()
	for _, result := range []string{"miss", "hit", "hit", "error"} {
		m.RecordInstall(result)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PackageInstalls.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PackageInstalls.WithLabelValues("error")))
	snap := m.Snapshot()
	assert.EqualValues(t, 4, snap.Installs)
	assert.EqualValues(t, 2, snap.CacheHits)
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/items/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	for _, path := range []string{"/items/1", "/items/2", "/nowhere"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/items/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))
	assert.EqualValues(t, 1, m.Snapshot().TotalErrors)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "executejs_uptime_seconds")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
