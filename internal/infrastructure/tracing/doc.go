/*
Package tracing times request and execution spans and writes them to the
structured log.

A trace is propagated through context.Context and, over HTTP, through the
X-Trace-ID and X-Span-ID headers. Finished spans are buffered (1000) and
logged by one collector goroutine; a full buffer drops spans rather than
blocking the caller.

	span, ctx := tracer.StartSpan(ctx, "execute")
	defer tracer.Finish(span)
	span.SetTag("mode", "module")
*/
package tracing
