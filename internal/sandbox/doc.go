/*
Package sandbox executes submitted JavaScript in a fresh goja engine per call.

# Lifecycle

Each execution walks the same states:

	Idle -> EngineInitialized -> BootstrapExecuted -> UserCodeDispatched
	     -> EventLoopDrained -> Succeeded | Failed

The prelude (bootstrap.js) installs console, alert and print bound to the
execution's own OutputBuffer, so concurrent executions never share output.
Code containing "import " or "export " runs as a module: esbuild rewrites it
to CommonJS and the module system resolves its imports through a
modules.Loader. Module code is strict and may use top-level await, in which
case the execution also waits for the module body to settle. Anything else
runs as a plain script. ExecuteFile takes a file name whose extension
selects TypeScript or JSX compilation.

# Event loop

Timers (setTimeout, setInterval, setImmediate) run until none remain.
Promise jobs drain whenever control returns from the engine. The whole
execution is bounded by Config.Timeout; when it passes the engine is
interrupted and ErrTimeout is returned.

# Errors

  - ScriptError: syntax errors and uncaught exceptions, engine text verbatim
  - BootstrapError: the prelude failed
  - ErrTimeout: deadline passed or the context was cancelled
*/
package sandbox
