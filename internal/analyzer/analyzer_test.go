package analyzer

import (
	"reflect"
	"testing"

	"nexus/internal/graph"
)

func TestAnalyze_NamedDeclarations(t *testing.T) {
	src := `export const used = 1;
export function helper() {}
export class Widget {}
function internal() {}`

	res := Analyze(src, "/src/utils.ts")
	want := []string{"used", "helper", "Widget"}
	if !reflect.DeepEqual(res.Exports, want) {
		t.Errorf("Exports = %v, want %v", res.Exports, want)
	}
}

func TestAnalyze_ExportDefault(t *testing.T) {
	res := Analyze(`export default function App() {}`, "/src/App.tsx")
	if len(res.Exports) != 1 || res.Exports[0] != "default" {
		t.Errorf("Exports = %v, want [default]", res.Exports)
	}
}

func TestAnalyze_ExportSpecifierList(t *testing.T) {
	res := Analyze(`const a = 1; const b = 2; export { a, b as c };`, "/m.ts")
	want := []string{"a", "c"}
	if !reflect.DeepEqual(res.Exports, want) {
		t.Errorf("Exports = %v, want %v", res.Exports, want)
	}
}

func TestAnalyze_ExportStar(t *testing.T) {
	res := Analyze(`export * from './other';`, "/m.ts")
	if len(res.Exports) != 0 {
		t.Errorf("export * from should contribute no local exports, got %v", res.Exports)
	}
	if len(res.Imports) != 1 {
		t.Fatalf("Imports = %v, want 1 edge", res.Imports)
	}
	e := res.Imports[0]
	if e.Kind != graph.ReExportStar || !e.IsStar || e.Source != "./other" {
		t.Errorf("edge = %+v, want ReExportStar star=true source=./other", e)
	}
}

func TestAnalyze_ExportNamedFrom(t *testing.T) {
	res := Analyze(`export { a } from './other';`, "/m.ts")
	if !reflect.DeepEqual(res.Exports, []string{"a"}) {
		t.Errorf("Exports = %v, want [a]", res.Exports)
	}
	if len(res.Imports) != 1 {
		t.Fatalf("Imports = %v, want 1 edge", res.Imports)
	}
	e := res.Imports[0]
	if e.Kind != graph.ReExportNamed || !reflect.DeepEqual(e.Specifiers, []string{"a"}) {
		t.Errorf("edge = %+v, want ReExportNamed specifiers=[a]", e)
	}
}

func TestAnalyze_ImportForms(t *testing.T) {
	src := `import './side-effect';
import Default from './default';
import * as NS from './ns';
import { a as b } from './named';
import('./dynamic');`

	res := Analyze(src, "/m.ts")
	if len(res.Imports) != 5 {
		t.Fatalf("Imports = %+v, want 5 edges", res.Imports)
	}

	kinds := make([]graph.ImportKind, len(res.Imports))
	for i, e := range res.Imports {
		kinds[i] = e.Kind
	}
	want := []graph.ImportKind{graph.StaticBare, graph.StaticDefault, graph.StaticNamespace, graph.StaticNamed, graph.Dynamic}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("kinds = %v, want %v", kinds, want)
	}

	named := res.Imports[3]
	if !reflect.DeepEqual(named.Specifiers, []string{"a"}) {
		t.Errorf("named import specifiers = %v, want [a] (original name, not alias)", named.Specifiers)
	}

	dyn := res.Imports[4]
	if !dyn.IsDynamic || dyn.Source != "./dynamic" {
		t.Errorf("dynamic edge = %+v", dyn)
	}
}

func TestAnalyze_CombinedDefaultAndNamedImport(t *testing.T) {
	res := Analyze(`import Default, { a, b as c } from './m';`, "/m.ts")
	if len(res.Imports) != 2 {
		t.Fatalf("Imports = %+v, want 2 edges (default + named)", res.Imports)
	}
	named := res.Imports[0]
	if named.Kind != graph.StaticNamed || !reflect.DeepEqual(named.Specifiers, []string{"a", "b"}) {
		t.Errorf("named edge = %+v, want StaticNamed specifiers=[a b]", named)
	}
	def := res.Imports[1]
	if def.Kind != graph.StaticDefault || !reflect.DeepEqual(def.Specifiers, []string{"default"}) {
		t.Errorf("default edge = %+v, want StaticDefault specifiers=[default]", def)
	}
	if named.Source != "./m" || def.Source != "./m" {
		t.Errorf("both edges should share source ./m, got named=%q default=%q", named.Source, def.Source)
	}
}

func TestAnalyze_DynamicImportNonLiteralIsUntracked(t *testing.T) {
	res := Analyze(`import(path);`, "/m.ts")
	if len(res.Imports) != 0 {
		t.Errorf("non-literal dynamic import should be untracked by the graph, got %v", res.Imports)
	}
}

func TestAnalyze_MalformedInputDoesNotPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Analyze panicked on malformed input: %v", r)
		}
	}()
	Analyze(`export { export const`, "/m.ts")
}
