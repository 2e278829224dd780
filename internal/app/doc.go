// Package app assembles the execution stack from configuration.
//
// Key Components:
//   - registry.Client: npm registry access (rate limited, circuit breaker)
//   - npm.Resolver: on-disk package cache
//   - modules.PackageLoader: pkg: import resolution, one per execution
//   - sandbox.Runtime: fresh goja engine per execution
//   - history.Ring and execution.Service
//
// Example Usage:
//
//	engine, err := app.New(config.LoadOrDefault(), logger)
//	if err != nil {
//	    return err
//	}
//	res := engine.Service.Execute(ctx, "import _ from 'pkg:lodash@4.17.21'; console.log(_.VERSION)")
package app
