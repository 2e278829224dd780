/*
Package http exposes the execution engine over a JSON API.

	POST   /execute           {"code": "..."} -> execution.ExecutionResult
	GET    /history[?limit=N] recorded executions, oldest first
	DELETE /history           clear the history
	GET    /cache             cached packages
	DELETE /cache?pattern=P   prune packages whose name@version matches P
	GET    /health            registry breaker, cache and history status
	GET    /metrics/json      counters and derived rates

Bodies are encoded with sonic. A failed execution is still a 200 response;
the result's success field tells callers apart.
*/
package http
