package http

import (
	"net/http"
	"time"

	"github.com/GriffinCanCode/executejs/backend/internal/infrastructure/monitoring"
	"github.com/gin-gonic/gin"
)

// MetricsSnapshot is the body of GET /metrics/json.
type MetricsSnapshot struct {
	Timestamp time.Time                  `json:"timestamp"`
	Counters  monitoring.MetricsSnapshot `json:"counters"`
	Summary   MetricsSummary             `json:"summary"`
}

// MetricsSummary provides high-level metrics
type MetricsSummary struct {
	AverageExecutionMs float64 `json:"average_execution_ms"`
	ExecutionErrorRate float64 `json:"execution_error_rate"`
	HTTPErrorRate      float64 `json:"http_error_rate"`
	CacheHitRate       float64 `json:"cache_hit_rate"`
}

// MetricsJSON returns the counters behind /metrics in JSON form.
func (h *Handlers) MetricsJSON(c *gin.Context) {
	counters := h.engine.Metrics.Snapshot()
	respond(c, http.StatusOK, MetricsSnapshot{
		Timestamp: time.Now(),
		Counters:  counters,
		Summary:   summarize(counters),
	})
}

func summarize(s monitoring.MetricsSnapshot) MetricsSummary {
	var sum MetricsSummary
	if s.Executions > 0 {
		sum.AverageExecutionMs = s.ExecutionSeconds * 1000 / float64(s.Executions)
		sum.ExecutionErrorRate = float64(s.FailedExecutions) / float64(s.Executions)
	}
	if s.TotalRequests > 0 {
		sum.HTTPErrorRate = float64(s.TotalErrors) / float64(s.TotalRequests)
	}
	if s.Installs > 0 {
		sum.CacheHitRate = float64(s.CacheHits) / float64(s.Installs)
	}
	return sum
}
