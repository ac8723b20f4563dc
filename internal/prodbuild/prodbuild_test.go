package prodbuild

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nexus/internal/compile"
	"nexus/internal/resolver"
)

type fakeCompiler struct{}

func (fakeCompiler) Compile(path string, data []byte) (compile.Output, error) {
	if strings.HasSuffix(path, ".css") {
		code := "if (import.meta.hot) { import.meta.hot.accept(); }\n"
		return compile.Output{Code: code, CSS: string(data)}, nil
	}
	return compile.Output{Code: string(data)}, nil
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestBuild_EmitsExpectedArtifacts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/util.js", "export const greeting = 'hi';\nexport const unused = 'dead';\n")
	writeFile(t, root, "src/style.css", "body { color: red; }\n")
	writeFile(t, root, "src/main.js", "import { greeting } from './util.js';\nimport './style.css';\nconsole.log(greeting);\n")
	writeFile(t, root, "index.html", "<html><body><div id=\"app\"></div></body></html>")

	entry, err := Build(Options{
		Root:     root,
		Resolver: resolver.New("browser"),
		Compiler: fakeCompiler{},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if entry != "/src/main.js" {
		t.Errorf("entry = %q, want /src/main.js", entry)
	}

	assets := filepath.Join(root, "dist", "assets")
	for _, name := range []string{"vendor.js", "main.js", "style.css"} {
		if _, err := os.Stat(filepath.Join(assets, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}

	mainJS, err := os.ReadFile(filepath.Join(assets, "main.js"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(mainJS), "__nexus_require__(\"/src/main.js\")") {
		t.Errorf("main.js missing bootstrap require: %s", mainJS)
	}

	style, err := os.ReadFile(filepath.Join(assets, "style.css"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(style), "color: red") {
		t.Errorf("style.css missing extracted CSS: %s", style)
	}

	vendorJS, err := os.ReadFile(filepath.Join(assets, "vendor.js"))
	if err != nil {
		t.Fatal(err)
	}
	combined := string(mainJS) + string(vendorJS)
	if strings.Contains(combined, "import.meta") {
		t.Errorf("css module's import.meta.hot must be rewritten before wrapping in a factory: %s", combined)
	}
	if !strings.Contains(combined, "module.hot") {
		t.Errorf("expected the css module's hot-accept call to survive as module.hot: %s", combined)
	}

	html, err := os.ReadFile(filepath.Join(root, "dist", "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(html), "vendor.js") || !strings.Contains(string(html), "</body>") {
		t.Errorf("index.html missing injected tags: %s", html)
	}
}

func TestBuild_NoEntryPoint(t *testing.T) {
	root := t.TempDir()
	_, err := Build(Options{
		Root:     root,
		Resolver: resolver.New("browser"),
		Compiler: fakeCompiler{},
	})
	if err == nil {
		t.Fatal("expected error when no entry point resolves")
	}
}

func TestBuild_SynthesizesMinimalHTMLWhenAbsent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/main.js", "console.log('hi');\n")

	if _, err := Build(Options{Root: root, Resolver: resolver.New("browser"), Compiler: fakeCompiler{}}); err != nil {
		t.Fatal(err)
	}

	html, err := os.ReadFile(filepath.Join(root, "dist", "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(html), "<!DOCTYPE html>") {
		t.Errorf("expected synthesized minimal html: %s", html)
	}
}
