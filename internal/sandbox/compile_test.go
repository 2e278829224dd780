package sandbox

import (
	"strings"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsTransform(t *testing.T) {
	tests := []struct {
		path string
		code string
		want bool
	}{
		{path: "/a/b.js", code: "module.exports = 1", want: false},
		{path: "/a/b.cjs", code: "module.exports = 1", want: false},
		{path: "/a/b.js", code: "export default 1", want: true},
		{path: "/a/b.mjs", code: "module.exports = 1", want: true},
		{path: "/a/b.ts", code: "const x: number = 1", want: true},
		{path: "/a/b.tsx", code: "", want: true},
		{path: "/a/b.jsx", code: "", want: true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, needsTransform(tt.code, tt.path), tt.path)
	}
}

func TestLoaderFor(t *testing.T) {
	assert.Equal(t, api.LoaderTS, loaderFor("x.MTS"))
	assert.Equal(t, api.LoaderTSX, loaderFor("x.tsx"))
	assert.Equal(t, api.LoaderJSX, loaderFor("x.jsx"))
	assert.Equal(t, api.LoaderJS, loaderFor("x.mjs"))
	assert.Equal(t, api.LoaderJS, loaderFor("noext"))
}

func TestSourceName(t *testing.T) {
	assert.Equal(t, "/a/user_code.js", sourceName("/a/user_code.mjs"))
	assert.Equal(t, "/a/lib.js", sourceName("/a/lib.cjs"))
	assert.Equal(t, "/a/lib.ts", sourceName("/a/lib.mts"))
	assert.Equal(t, "/a/lib.tsx", sourceName("/a/lib.tsx"))
}

func TestToCommonJS(t *testing.T) {
	out, err := toCommonJS("import { a } from './a.js'\nexport const b: number = a + 1", "/tmp/x.ts")
	require.NoError(t, err)
	assert.Contains(t, out, `require("./a.js")`)
	assert.NotContains(t, out, "import {")
	assert.NotContains(t, out, ": number")

	out, err = toCommonJS("export default async () => (await import('./lazy.js')).x", "/tmp/x.js")
	require.NoError(t, err)
	assert.Contains(t, out, `require("./lazy.js")`)
}

func TestToCommonJSSyntaxError(t *testing.T) {
	_, err := toCommonJS("export const = 1", "/tmp/broken.mjs")
	require.Error(t, err)

	var scriptErr *ScriptError
	require.ErrorAs(t, err, &scriptErr)
	assert.Contains(t, scriptErr.Message, "SyntaxError:")
	assert.Contains(t, scriptErr.Message, "/tmp/broken.js:1:")
}

func TestWrapModule(t *testing.T) {
	wrapped := wrapModule(moduleBody{code: "module.exports = 1 // trailing"})
	assert.Equal(t, "(function (exports, require, module, __filename, __dirname) {module.exports = 1 // trailing\n})", wrapped)

	wrapped = wrapModule(moduleBody{code: "x()", strict: true, async: true})
	assert.Equal(t, "(async function (exports, require, module, __filename, __dirname) {\"use strict\";x()\n})", wrapped)
}

func TestCompileModule(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		code       string
		allowAwait bool
		strict     bool
		async      bool
	}{
		{name: "commonjs untouched", path: "/a/b.js", code: "module.exports = 1"},
		{name: "esm is strict", path: "/a/b.js", code: "export const a = 1", strict: true},
		{name: "mjs is strict", path: "/a/b.mjs", code: "module.exports = 1", strict: true},
		{name: "typescript script stays sloppy", path: "/a/b.ts", code: "const x: number = 1"},
		{name: "top-level await in entry", path: "/a/b.js", code: "export {}\nconst v = await Promise.resolve(7)", allowAwait: true, strict: true, async: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := compileModule(tt.code, tt.path, tt.allowAwait)
			require.NoError(t, err)
			assert.Equal(t, tt.strict, body.strict)
			assert.Equal(t, tt.async, body.async)
			assert.NotContains(t, body.code, awaitMarker)
		})
	}
}

func TestCompileModuleRejectsAwaitInDependency(t *testing.T) {
	_, err := compileModule("export const v = await Promise.resolve(1)", "/a/dep.js", false)
	require.Error(t, err)

	var scriptErr *ScriptError
	require.ErrorAs(t, err, &scriptErr)
	assert.Contains(t, scriptErr.Message, "Top-level await")
}

func TestLowerTopLevelAwait(t *testing.T) {
	code := "import { a } from './a.js'\nconst x = await a()\nexport const y = (await x) + 1"
	_, msgs := transform(code, "/a/main.js")
	require.NotEmpty(t, msgs)

	out, ok := lowerTopLevelAwait(code, "/a/main.js", msgs)
	require.True(t, ok)
	assert.Equal(t, 2, strings.Count(out, "await "))
	assert.Contains(t, out, `require("./a.js")`)
	assert.NotContains(t, out, awaitMarker)
}

func TestLowerTopLevelAwaitOtherErrors(t *testing.T) {
	code := "export const = await 1"
	_, msgs := transform(code, "/a/main.js")
	require.NotEmpty(t, msgs)

	_, ok := lowerTopLevelAwait(code, "/a/main.js", msgs)
	assert.False(t, ok)
}

func TestUsesDynamicImport(t *testing.T) {
	assert.True(t, usesDynamicImport("import('./x').then(m => m)"))
	assert.False(t, usesDynamicImport("require('./x')"))
}
