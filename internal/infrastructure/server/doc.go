// Package server assembles the gin router and runs the HTTP API.
//
// Middleware order: recovery, request ID, request logging, metrics, CORS,
// then the optional per-IP rate limit. Prometheus metrics are served from
// the engine's private registry at /metrics.
package server
