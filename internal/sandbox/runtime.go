package sandbox

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/GriffinCanCode/executejs/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/executejs/backend/internal/modules"
	"github.com/GriffinCanCode/executejs/backend/internal/shared/paths"
	"github.com/dop251/goja"
	"github.com/evanw/esbuild/pkg/api"
	"go.uber.org/zap"
)

//go:embed bootstrap.js
var bootstrapSource string

// userScriptFile names plain-script submissions in diagnostics.
const userScriptFile = "user_code.js"

// Runtime executes submitted code, one fresh engine per call. A Runtime
// holds no engine state and is safe for concurrent use.
type Runtime struct {
	config  Config
	loaders LoaderFactory
	logger  *logging.Logger
}

// New creates a sandboxed runtime. A nil factory means filesystem-only
// imports.
func New(config Config, loaders LoaderFactory, logger *logging.Logger) (*Runtime, error) {
	if config.BaseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve base dir: %w", err)
		}
		config.BaseDir = wd
	}
	base, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base dir: %w", err)
	}
	config.BaseDir = base

	if loaders == nil {
		loaders = func() (modules.Loader, error) { return modules.NewFSLoader(), nil }
	}

	return &Runtime{
		config:  config,
		loaders: loaders,
		logger:  logging.OrNop(logger).Named("sandbox"),
	}, nil
}

// Config returns the effective configuration.
func (r *Runtime) Config() Config {
	return r.config
}

// execution is the per-call state: one engine, one buffer, one loop.
type execution struct {
	runtime  *Runtime
	ctx      context.Context
	name     string
	vm       *goja.Runtime
	output   *OutputBuffer
	loop     *eventLoop
	modules  *moduleSystem
	rejected map[*goja.Promise]struct{}
	// settles when a module body using top-level await finishes
	completion *goja.Promise
	result     *Result
	logger     *logging.Logger
}

// Execute runs code to completion. The returned Result is never nil; on
// failure it carries the error and whatever output was captured before it.
func (r *Runtime) Execute(ctx context.Context, code string) (*Result, error) {
	return r.ExecuteFile(ctx, "", code)
}

// ExecuteFile runs code as if read from a file called name in the base dir.
// The name's extension picks the dialect: .ts, .tsx and .jsx sources are
// compiled first. An empty name is plain JavaScript.
func (r *Runtime) ExecuteFile(ctx context.Context, name, code string) (*Result, error) {
	start := time.Now()

	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	if name != "" {
		name = filepath.Base(name)
		if name == "." || name == string(filepath.Separator) {
			name = ""
		}
	}
	mode := Classify(code)
	if isESM(code, name) {
		mode = ModeModule
	}

	e := &execution{
		runtime:  r,
		ctx:      ctx,
		name:     name,
		output:   NewOutputBuffer(),
		rejected: make(map[*goja.Promise]struct{}),
		result:   &Result{Mode: mode, State: StateIdle, Reached: StateIdle},
		logger:   r.logger.With(zap.Stringer("mode", mode)),
	}

	err := e.run(code, mode)

	result := e.result
	result.Duration = time.Since(start)
	result.Stdout, result.Stderr = e.output.Lines()
	result.Output = e.output.Render()

	if err != nil {
		result.State = StateFailed
		result.Error = err
		e.logger.Debug("execution failed",
			zap.Stringer("reached", result.Reached),
			zap.Duration("elapsed", result.Duration),
			zap.Error(err))
		return result, err
	}

	result.State = StateSucceeded
	if result.Output == "" {
		result.Output = NoOutput
	}
	e.logger.Debug("execution succeeded", zap.Duration("elapsed", result.Duration))
	return result, nil
}

func (e *execution) enter(state State) {
	e.result.Reached = state
}

func (e *execution) run(code string, mode Mode) error {
	if err := e.init(); err != nil {
		return err
	}
	e.enter(StateEngineInitialized)

	// the watcher interrupts long-running synchronous code; the loop itself
	// observes ctx between callbacks
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-e.ctx.Done():
			e.vm.Interrupt(e.ctx.Err())
		case <-stop:
		}
	}()

	if err := e.bootstrap(); err != nil {
		return e.classify(&BootstrapError{Err: err})
	}
	e.enter(StateBootstrapExecuted)

	if err := e.dispatch(code, mode); err != nil {
		return e.classify(err)
	}
	e.enter(StateUserCodeDispatched)

	if err := e.loop.Run(e.ctx); err != nil {
		return e.classify(err)
	}
	if err := e.settled(); err != nil {
		return err
	}
	if err := e.unhandledRejection(); err != nil {
		return err
	}
	e.enter(StateEventLoopDrained)
	return nil
}

// init builds the engine and the loader. A loader factory failure degrades
// to filesystem-only imports for this execution.
func (e *execution) init() error {
	e.vm = goja.New()
	if n := e.runtime.config.MaxCallStackSize; n > 0 {
		e.vm.SetMaxCallStackSize(n)
	}

	loader, err := e.runtime.loaders()
	if err != nil || loader == nil {
		e.logger.Warn("package loader unavailable, falling back to filesystem loader", zap.Error(err))
		loader = modules.NewFSLoader()
	}

	e.loop = newEventLoop(e.vm)
	e.modules = newModuleSystem(e.ctx, e.vm, loader, e.logger)

	e.vm.SetPromiseRejectionTracker(func(p *goja.Promise, op goja.PromiseRejectionOperation) {
		switch op {
		case goja.PromiseRejectionReject:
			e.rejected[p] = struct{}{}
		case goja.PromiseRejectionHandle:
			delete(e.rejected, p)
		}
	})
	return nil
}

// bootstrap installs timers and require, then runs the prelude with host
// functions bound to this execution's buffer.
func (e *execution) bootstrap() error {
	if err := e.loop.install(); err != nil {
		return err
	}
	referrer := filepath.Join(e.runtime.config.BaseDir, e.scriptName())
	if err := e.vm.Set("require", e.modules.requireFor(referrer)); err != nil {
		return err
	}

	prelude, err := e.vm.RunScript("bootstrap.js", bootstrapSource)
	if err != nil {
		return err
	}
	fn, ok := goja.AssertFunction(prelude)
	if !ok {
		return errors.New("prelude did not evaluate to a function")
	}

	host := e.vm.NewObject()
	output := e.output
	if err := host.Set("stdout", func(msg string) { output.AppendStdout(msg) }); err != nil {
		return err
	}
	if err := host.Set("stderr", func(msg string) { output.AppendStderr(msg) }); err != nil {
		return err
	}
	_, err = fn(goja.Undefined(), host)
	return err
}

func (e *execution) scriptName() string {
	if e.name != "" {
		return e.name
	}
	return userScriptFile
}

func (e *execution) modulePath() string {
	name := e.name
	if name == "" {
		name = paths.UserCodeFile
	}
	return filepath.Join(e.runtime.config.BaseDir, name)
}

func (e *execution) dispatch(code string, mode Mode) error {
	if mode == ModeScript {
		return e.runScript(code)
	}

	path := e.modulePath()
	completion, err := e.modules.evaluateMain(modules.ModuleKey(path), code, path)
	e.completion = completion
	return err
}

// runScript runs code in the global scope. TypeScript and JSX, and scripts
// calling import(), go through the compiler first; the result is still a
// script, so top-level declarations become globals.
func (e *execution) runScript(code string) error {
	name := e.scriptName()
	if loaderFor(name) != api.LoaderJS || usesDynamicImport(code) {
		converted, err := toCommonJS(code, name)
		if err != nil {
			return err
		}
		code = converted
	}

	prog, err := goja.Compile(name, code, false)
	if err != nil {
		return err
	}
	_, err = e.vm.RunProgram(prog)
	return err
}

// settled fails the execution when the entry module's top-level await
// rejected or never finished.
func (e *execution) settled() error {
	if e.completion == nil {
		return nil
	}
	delete(e.rejected, e.completion)

	switch e.completion.State() {
	case goja.PromiseStateRejected:
		return &ScriptError{Message: "Uncaught " + describeReason(e.completion.Result())}
	case goja.PromiseStatePending:
		return &ScriptError{Message: "top-level await never resolved"}
	}
	return nil
}

// unhandledRejection fails the execution when a promise rejected and no
// handler was attached by the time the loop drained.
func (e *execution) unhandledRejection() error {
	for p := range e.rejected {
		return &ScriptError{Message: "Uncaught (in promise) " + describeReason(p.Result())}
	}
	return nil
}

// describeReason prefers an error's stack over its plain string form.
func describeReason(reason goja.Value) string {
	if reason == nil {
		return "undefined"
	}
	if obj, ok := reason.(*goja.Object); ok {
		if stack := obj.Get("stack"); stack != nil && !goja.IsUndefined(stack) {
			return stack.String()
		}
	}
	return reason.String()
}

// classify maps engine and context errors onto the sandbox error kinds.
func (e *execution) classify(err error) error {
	if ctxErr := e.ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ErrTimeout, ctxErr)
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var bootErr *BootstrapError
	if errors.As(err, &bootErr) {
		return err
	}

	var scriptErr *ScriptError
	if errors.As(err, &scriptErr) {
		return err
	}

	// reported once: the engine's own wrapping would repeat the prefix
	var syntaxErr *goja.CompilerSyntaxError
	if errors.As(err, &syntaxErr) {
		return &ScriptError{Message: syntaxErr.Error()}
	}

	var ex *goja.Exception
	if errors.As(err, &ex) {
		return &ScriptError{Message: ex.Error()}
	}
	return &ScriptError{Message: err.Error()}
}
