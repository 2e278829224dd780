// Package registry is the client for an npm-compatible package registry.
//
// It knows two requests: the package document ("packument") at
// {base}/{name}, which lists dist-tags and per-version tarball URLs, and the
// tarball download itself. Requests go through a resty client on top of
// retryablehttp's pooled transport, an optional rate limiter and a circuit
// breaker. Failed requests are not retried unless RetryCount is raised.
package registry
