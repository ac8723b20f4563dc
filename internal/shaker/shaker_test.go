package shaker

import (
	"strings"
	"testing"
)

func TestShake_DropsUnusedFunction(t *testing.T) {
	src := `export function used() { return 1; }
export function unused() { return 2; }`

	out := Shake(src, map[string]bool{"used": true})

	if !strings.Contains(out, "function used()") {
		t.Errorf("used() was dropped: %q", out)
	}
	if strings.Contains(out, "function unused()") {
		t.Errorf("unused() body survived: %q", out)
	}
}

func TestShake_DropsUnusedClass(t *testing.T) {
	src := `export class Kept {}
export class Dropped { method() { return { nested: true }; } }`

	out := Shake(src, map[string]bool{"Kept": true})

	if !strings.Contains(out, "class Kept") {
		t.Errorf("Kept was dropped: %q", out)
	}
	if strings.Contains(out, "class Dropped") {
		t.Errorf("Dropped survived: %q", out)
	}
}

func TestShake_DropsUnusedDefault(t *testing.T) {
	out := Shake(`export default function App() { return 1; }`, map[string]bool{})
	if strings.Contains(out, "function App") {
		t.Errorf("unused default export survived: %q", out)
	}
}

func TestShake_KeepsUsedDefault(t *testing.T) {
	src := `export default function App() { return 1; }`
	out := Shake(src, map[string]bool{"default": true})
	if !strings.Contains(out, "function App") {
		t.Errorf("used default export was dropped: %q", out)
	}
}

func TestShake_ConstDeclaration(t *testing.T) {
	src := `export const kept = 1;
export const dropped = 2;`
	out := Shake(src, map[string]bool{"kept": true})
	if !strings.Contains(out, "kept = 1") {
		t.Errorf("kept was dropped: %q", out)
	}
	if strings.Contains(out, "dropped = 2") {
		t.Errorf("dropped survived: %q", out)
	}
}

func TestShake_DestructuredConstKeepsWholeIfAnyUsed(t *testing.T) {
	src := `export const { a, b } = source();`
	out := Shake(src, map[string]bool{"a": true})
	if !strings.Contains(out, "const { a, b } = source();") {
		t.Errorf("destructured declaration was split or dropped though a is used: %q", out)
	}
}

func TestShake_DestructuredConstDroppedWhenNoneUsed(t *testing.T) {
	src := `export const { a, b } = source();`
	out := Shake(src, map[string]bool{})
	if strings.Contains(out, "source()") {
		t.Errorf("destructured declaration should be dropped entirely: %q", out)
	}
}

func TestShake_SpecifierListFiltered(t *testing.T) {
	src := `const a = 1; const b = 2; export { a, b };`
	out := Shake(src, map[string]bool{"a": true})
	if !strings.Contains(out, "export { a }") {
		t.Errorf("expected filtered specifier list to keep a: %q", out)
	}
	if strings.Contains(out, "export { a, b }") {
		t.Errorf("b should have been filtered out: %q", out)
	}
}

func TestShake_SpecifierListDroppedWhenEmpty(t *testing.T) {
	src := `const a = 1; export { a };`
	out := Shake(src, map[string]bool{})
	if strings.Contains(out, "export {") {
		t.Errorf("empty specifier list should drop the whole statement: %q", out)
	}
}

func TestShake_NonExportedSideEffectsPreserved(t *testing.T) {
	src := `console.log("side effect");
export function unused() {}`
	out := Shake(src, map[string]bool{})
	if !strings.Contains(out, `console.log("side effect");`) {
		t.Errorf("non-exported top-level code was removed: %q", out)
	}
}

func TestShake_Idempotent(t *testing.T) {
	src := `export function used() { return 1; }
export function unused() { return 2; }`
	used := map[string]bool{"used": true}

	once := Shake(src, used)
	twice := Shake(once, used)
	if once != twice {
		t.Errorf("Shake is not idempotent:\nonce:  %q\ntwice: %q", once, twice)
	}
}
