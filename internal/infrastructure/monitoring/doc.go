/*
Package monitoring provides Prometheus metrics for executions, package
installs and the HTTP API.

Every Metrics value owns a private registry; nothing is registered with the
global default registry.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	done := metrics.StartExecution()
	// ... run code ...
	done("module", monitoring.StatusSuccess, elapsed)

Metrics also satisfies npm.InstallRecorder, so the package resolver reports
cache hits, misses and failures directly.
*/
package monitoring
