// Package logging provides structured logging using uber/zap.
//
// Two output modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for human readability
//
// Components receive a *Logger and derive a named child for their own
// messages, so resolver and loader traces can be filtered by name:
//
//	logger := logging.NewDefault()
//	resolverLog := logger.Named("npm")
//	resolverLog.Debug("cache hit", zap.String("package", "lodash"))
package logging
