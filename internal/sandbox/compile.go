package sandbox

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Classify picks the dispatch path. Detection is textual: an "import " or
// "export " anywhere, string literals and comments included, selects the
// module path.
func Classify(code string) Mode {
	if strings.Contains(code, "import ") || strings.Contains(code, "export ") {
		return ModeModule
	}
	return ModeScript
}

// loaderFor maps a file extension to an esbuild loader.
func loaderFor(path string) api.Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	default:
		return api.LoaderJS
	}
}

// needsTransform reports whether source must pass through esbuild before the
// engine can run it. Plain CommonJS is evaluated as is.
func needsTransform(code, path string) bool {
	if loaderFor(path) != api.LoaderJS {
		return true
	}
	if strings.EqualFold(filepath.Ext(path), ".mjs") {
		return true
	}
	return Classify(code) == ModeModule
}

// toCommonJS rewrites ES module syntax, TypeScript and JSX into CommonJS the
// engine can evaluate inside the module wrapper. Dynamic import() becomes a
// promise around require.
func toCommonJS(code, path string) (string, error) {
	out, msgs := transform(code, path)
	if len(msgs) > 0 {
		return "", &ScriptError{Message: formatMessages(msgs)}
	}
	return out, nil
}

func transform(code, path string) (string, []api.Message) {
	result := api.Transform(code, api.TransformOptions{
		Loader:     loaderFor(path),
		Format:     api.FormatCommonJS,
		Target:     api.ES2017,
		Sourcefile: sourceName(path),
		Supported:  map[string]bool{"dynamic-import": false},
		LogLevel:   api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return "", result.Errors
	}
	return string(result.Code), nil
}

// moduleBody is CommonJS source ready for the module wrapper.
type moduleBody struct {
	code   string
	strict bool // converted from ES module syntax
	async  bool // uses top-level await; the wrapper returns a promise
}

// compileModule prepares module source for the wrapper. Top-level await is
// accepted only with allowAwait, which the entry module alone gets: a
// required module must finish synchronously.
func compileModule(code, path string, allowAwait bool) (moduleBody, error) {
	if !needsTransform(code, path) {
		return moduleBody{code: code}, nil
	}
	body := moduleBody{strict: isESM(code, path)}

	out, msgs := transform(code, path)
	if len(msgs) == 0 {
		body.code = out
		return body, nil
	}
	if allowAwait {
		if out, ok := lowerTopLevelAwait(code, path, msgs); ok {
			body.code = out
			body.async = true
			return body, nil
		}
	}
	return moduleBody{}, &ScriptError{Message: formatMessages(msgs)}
}

// isESM reports whether source is an ES module and so runs in strict mode.
func isESM(code, path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mjs", ".mts":
		return true
	}
	return Classify(code) == ModeModule
}

// awaitMarker stands in for a top-level await keyword while esbuild rewrites
// the module. "marker - x" parses wherever "await x" does and is printed back
// verbatim, so the keyword can be restored once the output is CommonJS.
const awaitMarker = "__executejs_await__"

// lowerTopLevelAwait retries the transform with every top-level await
// esbuild rejected masked by awaitMarker, then unmasks the output. The
// result must run inside an async wrapper. It reports false when any error
// is not about top-level await, or the masked source does not transform.
func lowerTopLevelAwait(code, path string, msgs []api.Message) (string, bool) {
	lineStarts := []int{0}
	for i := 0; i < len(code); i++ {
		if code[i] == '\n' {
			lineStarts = append(lineStarts, i+1)
		}
	}

	offsets := make([]int, 0, len(msgs))
	for _, m := range msgs {
		if !strings.HasPrefix(m.Text, "Top-level await") || m.Location == nil {
			return "", false
		}
		line := m.Location.Line - 1
		if line < 0 || line >= len(lineStarts) {
			return "", false
		}
		off := lineStarts[line] + m.Location.Column
		if off > len(code) || !strings.HasPrefix(code[off:], "await") {
			return "", false
		}
		offsets = append(offsets, off)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(offsets)))

	masked := code
	for i, off := range offsets {
		if i > 0 && off == offsets[i-1] {
			continue
		}
		masked = masked[:off] + awaitMarker + " -" + masked[off+len("await"):]
	}

	out, errs := transform(masked, path)
	if len(errs) > 0 {
		return "", false
	}
	out = strings.ReplaceAll(out, awaitMarker+" - ", "await ")
	if strings.Contains(out, awaitMarker) {
		return "", false
	}
	return out, true
}

// sourceName hides the .mjs/.cjs family from esbuild. Those extensions turn
// on Node's interop, where a default import always binds module.exports,
// and that would break default imports between transformed modules.
func sourceName(path string) string {
	ext := filepath.Ext(path)
	switch strings.ToLower(ext) {
	case ".mjs", ".cjs":
		return strings.TrimSuffix(path, ext) + ".js"
	case ".mts", ".cts":
		return strings.TrimSuffix(path, ext) + ".ts"
	default:
		return path
	}
}

func formatMessages(msgs []api.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location == nil {
			parts = append(parts, "SyntaxError: "+m.Text)
			continue
		}
		parts = append(parts, fmt.Sprintf("SyntaxError: %s at %s:%d:%d",
			m.Text, m.Location.File, m.Location.Line, m.Location.Column+1))
	}
	return strings.Join(parts, "\n")
}

// wrapModule encloses CommonJS code in the function the module system calls.
// The trailing newline keeps a final line comment from swallowing the brace.
func wrapModule(body moduleBody) string {
	var b strings.Builder
	b.WriteString("(")
	if body.async {
		b.WriteString("async ")
	}
	b.WriteString("function (exports, require, module, __filename, __dirname) {")
	if body.strict {
		b.WriteString(`"use strict";`)
	}
	b.WriteString(body.code)
	b.WriteString("\n})")
	return b.String()
}

// usesDynamicImport reports whether a plain script calls import(), which the
// engine only parses once it is rewritten to require.
func usesDynamicImport(code string) bool {
	return strings.Contains(code, "import(")
}
