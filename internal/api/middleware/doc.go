// Package middleware provides the gin middleware stack of the HTTP API.
//
//   - CORS: cross-origin access for the editor front end
//   - RateLimit: per-IP token bucket, idle clients evicted
//   - GlobalRateLimit: one bucket shared by all clients
//   - RequestID: X-Request-ID propagation
//   - Logger: structured request logging
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
