package execution

import (
	"context"
	"strings"
	"time"

	"github.com/GriffinCanCode/executejs/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/executejs/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/executejs/backend/internal/sandbox"
	"github.com/GriffinCanCode/executejs/backend/internal/shared/id"
	"go.uber.org/zap"
)

// Runner executes code in a fresh engine. name is an optional file name whose
// extension selects the source dialect.
type Runner interface {
	ExecuteFile(ctx context.Context, name, code string) (*sandbox.Result, error)
}

// Recorder stores finished results.
type Recorder interface {
	Record(result *ExecutionResult)
}

// Metrics observes executions.
type Metrics interface {
	StartExecution() func(mode, status string, duration time.Duration)
}

// Service turns submissions into recorded results.
type Service struct {
	runner   Runner
	recorder Recorder
	metrics  Metrics
	tracer   *tracing.Tracer
	logger   *logging.Logger
}

// NewService creates an execution service. recorder and metrics may be nil.
func NewService(runner Runner, recorder Recorder, logger *logging.Logger) *Service {
	return &Service{
		runner:   runner,
		recorder: recorder,
		logger:   logging.OrNop(logger).Named("execution"),
	}
}

// WithMetrics adds metrics tracking to the service
func (s *Service) WithMetrics(metrics Metrics) *Service {
	s.metrics = metrics
	return s
}

// WithTracer records a span per execution.
func (s *Service) WithTracer(tracer *tracing.Tracer) *Service {
	s.tracer = tracer
	return s
}

// Execute runs code and returns its record. It never returns nil: every
// failure is reported inside the result. Whitespace-only input fails
// without creating an engine.
func (s *Service) Execute(ctx context.Context, code string) *ExecutionResult {
	return s.ExecuteFile(ctx, "", code)
}

// ExecuteFile is Execute for code read from a file called name: a .ts, .tsx
// or .jsx name compiles the code from that dialect first.
func (s *Service) ExecuteFile(ctx context.Context, name, code string) *ExecutionResult {
	result := &ExecutionResult{
		File:      name,
		ID:        id.NewExecutionID(),
		Code:      code,
		Timestamp: time.Now(),
		Output:    Output{Stdout: []string{}, Stderr: []string{}},
	}
	log := s.logger.With(zap.Stringer("execution_id", result.ID))

	if strings.TrimSpace(code) == "" {
		s.fail(result, ValidationMessage)
		log.Debug("rejected empty submission")
		s.record(result)
		return result
	}

	var done func(mode, status string, duration time.Duration)
	if s.metrics != nil {
		done = s.metrics.StartExecution()
	}

	var span *tracing.Span
	if s.tracer != nil {
		span, ctx = s.tracer.StartSpan(ctx, "execute")
		span.SetTag("execution_id", result.ID.String())
	}

	start := time.Now()
	res, err := s.runner.ExecuteFile(ctx, name, code)
	result.Duration = time.Since(start)

	if res != nil {
		result.Mode = res.Mode.String()
		if res.Stdout != nil {
			result.Output.Stdout = res.Stdout
		}
		if res.Stderr != nil {
			result.Output.Stderr = res.Stderr
		}
	}

	status := "success"
	if err != nil {
		status = "failure"
		s.fail(result, FailurePrefix+err.Error())
		log.Info("execution failed",
			zap.String("mode", result.Mode),
			zap.Duration("elapsed", result.Duration),
			zap.Error(err))
	} else {
		result.Success = true
		result.Result = res.Output
		log.Info("execution succeeded",
			zap.String("mode", result.Mode),
			zap.Duration("elapsed", result.Duration),
			zap.Int("stdout_lines", len(result.Output.Stdout)),
			zap.Int("stderr_lines", len(result.Output.Stderr)))
	}

	if done != nil {
		done(result.Mode, status, result.Duration)
	}
	if span != nil {
		span.SetTag("mode", result.Mode)
		if err != nil {
			span.SetError(err)
		}
		s.tracer.Finish(span)
	}
	s.record(result)
	return result
}

// fail leaves Result empty; the message lives in Error only.
func (s *Service) fail(result *ExecutionResult, msg string) {
	result.Success = false
	result.Result = ""
	result.Error = &msg
}

func (s *Service) record(result *ExecutionResult) {
	if s.recorder != nil {
		s.recorder.Record(result)
	}
}
