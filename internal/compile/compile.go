// Package compile wraps the external syntactic compiler collaborator
// (TS/JSX stripping) and the CSS/asset side-output rules behind a small
// interface so the orchestrators never depend on esbuild directly; tests
// substitute a fake. The real implementation is backed by
// github.com/evanw/esbuild/pkg/api, exactly as the teacher's
// transpile/bundle subcommands use it.
package compile

import (
	"encoding/base64"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"nexus/internal/graph"
)

// InlineThreshold is the asset-inlining cutoff from §4.7: assets at or
// under this size are emitted as data: URLs, larger ones are routed to
// /assets/ on disk.
const InlineThreshold = 8 * 1024

// Output is the result of compiling one source file: JS text (possibly a
// CSS-injector or asset-URL shim), an optional source map, and optional
// side-outputs for CSS/binary assets.
type Output struct {
	Code      string
	SourceMap string
	CSS       string
	Asset     *graph.Asset
}

// Compiler turns raw file bytes into the JS the analyzer can read. Path
// selects the dialect/loader; it is the virtual (graph) path, not
// necessarily the fs path.
type Compiler interface {
	Compile(path string, data []byte) (Output, error)
}

// ESBuildCompiler is the production Compiler, backed by esbuild's
// Transform API for syntactic TS/JSX stripping and a small set of
// built-in rules for CSS and binary assets (esbuild itself is not asked
// to bundle — the graph engine owns that).
type ESBuildCompiler struct{}

// IsBinaryAssetExt reports whether ext is one of the binary/JSON asset
// extensions whose compiled output the prod build neither analyzes nor
// shakes (CSS is handled separately by callers since it still carries a
// side-output but no import edges).
func IsBinaryAssetExt(ext string) bool {
	switch ext {
	case ".json", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".wasm":
		return true
	default:
		return false
	}
}

// Compile dispatches by extension per §4.7 step 2.
func (ESBuildCompiler) Compile(path string, data []byte) (Output, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".css":
		return compileCSS(path, data), nil
	case ".json", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".wasm":
		return compileAsset(path, data), nil
	default:
		return compileScript(path, data, ext)
	}
}

func compileScript(path string, data []byte, ext string) (Output, error) {
	loader := loaderFor(ext)
	result := api.Transform(string(data), api.TransformOptions{
		Loader:      loader,
		JSX:         api.JSXAutomatic,
		Sourcemap:   api.SourceMapInline,
		Target:      api.ESNext,
		LogLevel:    api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return Output{}, fmt.Errorf("compile %s: %s", path, result.Errors[0].Text)
	}
	return Output{Code: string(result.Code)}, nil
}

func loaderFor(ext string) api.Loader {
	switch ext {
	case ".ts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	case ".mjs", ".cjs":
		return api.LoaderJS
	default:
		return api.LoaderJS
	}
}

// compileCSS produces the CSS side-output plus a JS injector snippet that
// writes a <style> element and registers its HMR accept/dispose pair, per
// §4.7 step 2.
func compileCSS(path string, data []byte) Output {
	text := string(data)
	id := cssElementID(path)
	js := fmt.Sprintf(`(function(){
  var prev = document.getElementById(%q);
  if (prev) prev.remove();
  var style = document.createElement("style");
  style.id = %q;
  style.textContent = %q;
  document.head.appendChild(style);
  if (import.meta.hot) {
    import.meta.hot.accept();
    import.meta.hot.dispose(function(){
      var el = document.getElementById(%q);
      if (el) el.remove();
    });
  }
})();
`, id, id, text, id)
	return Output{Code: js, CSS: text}
}

func cssElementID(path string) string {
	return "nexus-style-" + strings.ReplaceAll(strings.TrimPrefix(path, "/"), "/", "-")
}

// compileAsset inlines small assets as data: URLs and routes larger ones
// to disk, per §4.7 step 2's 8 KiB threshold.
func compileAsset(path string, data []byte) Output {
	ext := strings.ToLower(filepath.Ext(path))
	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	if len(data) <= InlineThreshold {
		url := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
		return Output{Code: fmt.Sprintf("export default %q;\n", url)}
	}

	name := filepath.Base(path)
	url := "/assets/" + name
	return Output{
		Code:  fmt.Sprintf("export default %q;\n", url),
		Asset: &graph.Asset{Name: name, Data: data},
	}
}
