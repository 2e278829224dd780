package app

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/executejs/backend/internal/execution"
	"github.com/GriffinCanCode/executejs/backend/internal/history"
	"github.com/GriffinCanCode/executejs/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/executejs/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/executejs/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/executejs/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/executejs/backend/internal/modules"
	"github.com/GriffinCanCode/executejs/backend/internal/npm"
	"github.com/GriffinCanCode/executejs/backend/internal/registry"
	"github.com/GriffinCanCode/executejs/backend/internal/sandbox"
	"go.uber.org/zap"
)

// Engine wires the execution stack from configuration. CLI commands and the
// HTTP server share it.
type Engine struct {
	Config   *config.Config
	Logger   *logging.Logger
	Metrics  *monitoring.Metrics
	Tracer   *tracing.Tracer
	Registry *registry.Client
	Resolver *npm.Resolver // nil when the cache could not be opened
	Paths    *modules.SpecifierPathMap
	Runtime  *sandbox.Runtime
	History  *history.Ring
	Service  *execution.Service

	resolverErr error
}

// New builds an engine. A cache directory that cannot be created does not
// fail construction: executions then run with filesystem imports only.
func New(cfg *config.Config, logger *logging.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger = logging.OrNop(logger)

	e := &Engine{
		Config:  cfg,
		Logger:  logger,
		Metrics: monitoring.NewMetrics(),
		Tracer:  tracing.New(logger),
		Paths:   modules.NewSpecifierPathMap(),
		History: history.NewRing(cfg.Execution.HistorySize),
	}

	e.Registry = registry.New(registry.Options{
		BaseURL:           cfg.Registry.BaseURL,
		Timeout:           cfg.Registry.Timeout.Std(),
		RetryCount:        cfg.Registry.RetryCount,
		RequestsPerSecond: cfg.Registry.RequestsPerSecond,
		UserAgent:         cfg.Registry.UserAgent,
		Logger:            logger,
	})

	resolver, err := npm.NewResolver(npm.Options{
		CacheRoot:       cfg.Cache.Dir,
		Registry:        e.Registry,
		VerifyIntegrity: cfg.Cache.VerifyIntegrity,
		Logger:          logger,
		Recorder:        e.Metrics,
	})
	if err != nil {
		logger.Warn("package cache unavailable, pkg: imports disabled", zap.Error(err))
		e.resolverErr = err
	} else {
		e.Resolver = resolver
	}

	runtime, err := sandbox.New(sandbox.Config{
		Timeout:          cfg.Execution.Timeout.Std(),
		BaseDir:          cfg.Execution.BaseDir,
		MaxCallStackSize: sandbox.DefaultConfig().MaxCallStackSize,
	}, e.Loaders(), logger)
	if err != nil {
		e.Tracer.Close()
		return nil, fmt.Errorf("create runtime: %w", err)
	}
	e.Runtime = runtime

	e.Service = execution.NewService(runtime, e.History, logger).
		WithMetrics(e.Metrics).
		WithTracer(e.Tracer)
	return e, nil
}

// Close flushes pending spans and logs.
func (e *Engine) Close() {
	e.Tracer.Close()
	_ = e.Logger.Sync()
}

// Loaders returns the factory the runtime calls once per execution. Every
// loader shares the engine's specifier path map.
func (e *Engine) Loaders() sandbox.LoaderFactory {
	return func() (modules.Loader, error) {
		resolver, err := e.CacheResolver()
		if err != nil {
			return nil, err
		}
		return modules.NewPackageLoader(resolver, e.Paths, e.Logger)
	}
}

// CacheResolver returns the resolver or the error that prevented opening
// the cache.
func (e *Engine) CacheResolver() (*npm.Resolver, error) {
	if e.Resolver == nil {
		if e.resolverErr != nil {
			return nil, e.resolverErr
		}
		return nil, errors.New("package resolver not configured")
	}
	return e.Resolver, nil
}
