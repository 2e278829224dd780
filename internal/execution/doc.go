/*
Package execution is the entry point for running submitted code.

Service.Execute validates the submission, runs it through a sandbox.Runtime,
converts the outcome into an ExecutionResult and records it in history.
Errors never escape as Go errors: a failed run is a result with Success
false and Error set to "execution failed: <cause>", or "empty code" for
blank input.

	svc := execution.NewService(runtime, history.NewRing(100), logger).
		WithMetrics(metrics)
	res := svc.Execute(ctx, "console.log('hi')")
	fmt.Println(res.Result) // hi
*/
package execution
