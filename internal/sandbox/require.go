package sandbox

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/GriffinCanCode/executejs/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/executejs/backend/internal/modules"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// moduleSystem implements CommonJS require on top of a modules.Loader. Each
// execution gets its own instance, so module state never leaks between runs.
type moduleSystem struct {
	ctx    context.Context
	vm     *goja.Runtime
	loader modules.Loader
	logger *logging.Logger
	cache  map[modules.ModuleKey]*goja.Object
}

func newModuleSystem(ctx context.Context, vm *goja.Runtime, loader modules.Loader, logger *logging.Logger) *moduleSystem {
	return &moduleSystem{
		ctx:    ctx,
		vm:     vm,
		loader: loader,
		logger: logger,
		cache:  make(map[modules.ModuleKey]*goja.Object),
	}
}

// requireFor returns a require function resolving against referrer.
func (m *moduleSystem) requireFor(referrer string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		spec := call.Argument(0).String()
		exports, err := m.require(spec, referrer, modules.KindRequire)
		if err != nil {
			panic(m.throwable(err))
		}
		return exports
	}
}

// throwable converts a Go error into a value the engine can throw. Engine
// exceptions pass through unchanged so nested module errors keep their
// original value.
func (m *moduleSystem) throwable(err error) goja.Value {
	if ex, ok := err.(*goja.Exception); ok {
		return ex.Value()
	}
	if syntaxErr, ok := err.(*goja.CompilerSyntaxError); ok {
		if ctor, ok := goja.AssertConstructor(m.vm.Get("SyntaxError")); ok {
			msg := strings.TrimPrefix(syntaxErr.Error(), "SyntaxError: ")
			if obj, cerr := ctor(nil, m.vm.ToValue(msg)); cerr == nil {
				return obj
			}
		}
	}
	return m.vm.NewGoError(err)
}

func (m *moduleSystem) require(spec, referrer string, kind modules.Kind) (goja.Value, error) {
	key, err := m.loader.Resolve(spec, referrer, kind)
	if err != nil {
		return nil, err
	}
	if module, ok := m.cache[key]; ok {
		return module.Get("exports"), nil
	}

	src, err := m.loader.Load(m.ctx, key)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("module loaded",
		zap.String("specifier", spec),
		zap.String("key", string(key)),
		zap.String("path", src.Path))

	if src.Type == modules.TypeJSON {
		return m.evaluateJSON(key, src)
	}
	return m.evaluate(key, src.Code, src.Path)
}

func (m *moduleSystem) evaluateJSON(key modules.ModuleKey, src *modules.Source) (goja.Value, error) {
	parse, ok := goja.AssertFunction(m.vm.Get("JSON").ToObject(m.vm).Get("parse"))
	if !ok {
		return nil, &ScriptError{Message: "JSON.parse is not available"}
	}
	value, err := parse(goja.Undefined(), m.vm.ToValue(src.Code))
	if err != nil {
		return nil, err
	}
	module := m.vm.NewObject()
	_ = module.Set("exports", value)
	m.cache[key] = module
	return value, nil
}

// evaluate compiles code when needed and runs it inside the module wrapper.
// The module is cached before it runs so circular requires see its partial
// exports.
func (m *moduleSystem) evaluate(key modules.ModuleKey, code, path string) (goja.Value, error) {
	body, err := compileModule(code, path, false)
	if err != nil {
		return nil, err
	}
	module, _, err := m.run(key, body, path)
	if err != nil {
		return nil, err
	}
	return module.Get("exports"), nil
}

// evaluateMain runs the entry module. Unlike a required module it may use
// top-level await; the returned promise settles when its body finishes and
// is nil when the body ran synchronously.
func (m *moduleSystem) evaluateMain(key modules.ModuleKey, code, path string) (*goja.Promise, error) {
	body, err := compileModule(code, path, true)
	if err != nil {
		return nil, err
	}
	_, completion, err := m.run(key, body, path)
	return completion, err
}

func (m *moduleSystem) run(key modules.ModuleKey, body moduleBody, path string) (*goja.Object, *goja.Promise, error) {
	prog, err := goja.Compile(path, wrapModule(body), false)
	if err != nil {
		return nil, nil, err
	}
	fnValue, err := m.vm.RunProgram(prog)
	if err != nil {
		return nil, nil, err
	}
	fn, ok := goja.AssertFunction(fnValue)
	if !ok {
		return nil, nil, &ScriptError{Message: "module wrapper did not evaluate to a function"}
	}

	module := m.vm.NewObject()
	exports := m.vm.NewObject()
	_ = module.Set("exports", exports)
	_ = module.Set("id", string(key))
	_ = module.Set("filename", path)
	m.cache[key] = module

	ret, err := fn(exports,
		exports,
		m.vm.ToValue(m.requireFor(string(key))),
		module,
		m.vm.ToValue(path),
		m.vm.ToValue(filepath.Dir(path)))
	if err != nil {
		delete(m.cache, key)
		return nil, nil, err
	}

	var completion *goja.Promise
	if body.async && ret != nil {
		completion, _ = ret.Export().(*goja.Promise)
	}
	return module, completion, nil
}
