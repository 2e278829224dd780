package http

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/GriffinCanCode/executejs/backend/internal/app"
	"github.com/GriffinCanCode/executejs/backend/internal/execution"
	"github.com/GriffinCanCode/executejs/backend/internal/npm"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/gin-gonic/gin"
)

// Version is reported by the root endpoint.
const Version = "0.1.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	engine *app.Engine
}

// NewHandlers creates a new handler set
func NewHandlers(engine *app.Engine) *Handlers {
	return &Handlers{engine: engine}
}

// ExecuteRequest is the body of POST /execute.
type ExecuteRequest struct {
	Code string `json:"code"`
	// Filename is optional; a .ts, .tsx or .jsx name compiles Code from that dialect.
	Filename string `json:"filename,omitempty"`
}

// HistoryResponse is the body of GET /history.
type HistoryResponse struct {
	Entries  []*execution.ExecutionResult `json:"entries"`
	Count    int                          `json:"count"`
	Capacity int                          `json:"capacity"`
}

// CacheResponse is the body of GET /cache.
type CacheResponse struct {
	Root     string              `json:"root"`
	Packages []npm.CachedPackage `json:"packages"`
	Count    int                 `json:"count"`
}

// Root handles GET /
func (h *Handlers) Root(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{
		"status":  "online",
		"service": "executejs",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	cache := gin.H{"available": false}
	if resolver, err := h.engine.CacheResolver(); err == nil {
		cache = gin.H{"available": true, "root": resolver.CacheRoot()}
	} else {
		cache["error"] = err.Error()
	}

	respond(c, http.StatusOK, gin.H{
		"status": "healthy",
		"registry": gin.H{
			"url":     h.engine.Registry.BaseURL(),
			"breaker": h.engine.Registry.BreakerState().String(),
		},
		"cache": cache,
		"history": gin.H{
			"size":     h.engine.History.Len(),
			"capacity": h.engine.History.Cap(),
		},
	})
}

// Execute runs submitted code. Execution failures are reported in the
// result body with status 200; only malformed requests are rejected.
func (h *Handlers) Execute(c *gin.Context) {
	var req ExecuteRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var name string
	if req.Filename != "" {
		name = filepath.Base(req.Filename)
	}
	result := h.engine.Service.ExecuteFile(c.Request.Context(), name, req.Code)
	respond(c, http.StatusOK, result)
}

// ListHistory returns recorded executions, oldest first. An optional
// ?limit=N keeps only the newest N.
func (h *Handlers) ListHistory(c *gin.Context) {
	entries := h.engine.History.List()

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondError(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if limit < len(entries) {
			entries = entries[len(entries)-limit:]
		}
	}

	respond(c, http.StatusOK, HistoryResponse{
		Entries:  entries,
		Count:    len(entries),
		Capacity: h.engine.History.Cap(),
	})
}

// ClearHistory drops every recorded execution.
func (h *Handlers) ClearHistory(c *gin.Context) {
	cleared := h.engine.History.Len()
	h.engine.History.Clear()
	respond(c, http.StatusOK, gin.H{"cleared": cleared})
}

// ListCache lists cached packages.
func (h *Handlers) ListCache(c *gin.Context) {
	resolver, err := h.engine.CacheResolver()
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, err.Error())
		return
	}

	packages, err := resolver.List(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respond(c, http.StatusOK, CacheResponse{
		Root:     resolver.CacheRoot(),
		Packages: packages,
		Count:    len(packages),
	})
}

// PruneCache removes cached packages whose name@version matches ?pattern=.
func (h *Handlers) PruneCache(c *gin.Context) {
	pattern := c.Query("pattern")
	if pattern == "" {
		respondError(c, http.StatusBadRequest, "pattern query parameter is required")
		return
	}

	resolver, err := h.engine.CacheResolver()
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, err.Error())
		return
	}

	removed, err := resolver.Prune(c.Request.Context(), pattern)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, doublestar.ErrBadPattern) {
			status = http.StatusBadRequest
		}
		respondError(c, status, err.Error())
		return
	}
	respond(c, http.StatusOK, gin.H{
		"removed": removed,
		"count":   len(removed),
	})
}
