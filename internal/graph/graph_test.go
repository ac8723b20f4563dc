package graph

import "testing"

func TestAddModule_UpdateOrCreate(t *testing.T) {
	g := New()
	id1 := g.AddModule("/src/app.ts", "console.log(1)")
	id2 := g.AddModule("/src/app.ts", "console.log(2)")

	if id1 != id2 {
		t.Fatalf("AddModule on existing path returned a new id: %d != %d", id1, id2)
	}

	m, ok := g.Module(id1)
	if !ok {
		t.Fatal("module not found")
	}
	if m.Source != "console.log(1)" {
		t.Fatalf("AddModule on existing path overwrote source: %q", m.Source)
	}
	if m.Version != 1 {
		t.Fatalf("fresh module version = %d, want 1", m.Version)
	}
}

func TestUpdateSource_BumpsVersion(t *testing.T) {
	g := New()
	id := g.AddModule("/src/app.ts", "a")

	for i, want := range []int{2, 3, 4} {
		g.UpdateSource(id, "b")
		m, _ := g.Module(id)
		if m.Version != want {
			t.Fatalf("update %d: version = %d, want %d", i, m.Version, want)
		}
	}
}

func TestAddDependency_Invariants(t *testing.T) {
	g := New()
	a := g.AddModule("/a.ts", "")
	b := g.AddModule("/b.ts", "")

	if err := g.AddDependency(a, a); err != ErrSelfEdge {
		t.Fatalf("self edge: err = %v, want ErrSelfEdge", err)
	}
	if err := g.AddDependency(a, ID(99)); err != ErrOutOfBounds {
		t.Fatalf("oob edge: err = %v, want ErrOutOfBounds", err)
	}

	if err := g.AddDependency(a, b); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}
	if err := g.AddDependency(a, b); err != nil {
		t.Fatalf("repeated AddDependency: %v", err)
	}

	out := g.Outgoing(a)
	if len(out) != 1 || out[0] != b {
		t.Fatalf("outgoing[a] = %v, want [b] (idempotent edge)", out)
	}
	in := g.Incoming(b)
	if len(in) != 1 || in[0] != a {
		t.Fatalf("incoming[b] = %v, want [a]", in)
	}
}

func TestLinearize_DependencyBeforeDependent(t *testing.T) {
	g := New()
	main := g.AddModule("/main.ts", "")
	lib := g.AddModule("/lib.ts", "")
	utils := g.AddModule("/utils.ts", "")

	mustAdd(t, g, main, lib)
	mustAdd(t, g, lib, utils)

	order := g.Linearize(main)
	pos := indexOf(order)
	if pos[utils] >= pos[lib] || pos[lib] >= pos[main] {
		t.Fatalf("linearize order = %v, want utils before lib before main", order)
	}
}

func TestLinearize_CycleTerminates(t *testing.T) {
	g := New()
	a := g.AddModule("/a.ts", "")
	b := g.AddModule("/b.ts", "")
	mustAdd(t, g, a, b)
	mustAdd(t, g, b, a)

	order := g.Linearize(a)
	if len(order) != 2 {
		t.Fatalf("linearize on cycle = %v, want 2 nodes visited exactly once", order)
	}
}

func TestFindAffectedRoots_LinearChain(t *testing.T) {
	g := New()
	main := g.AddModule("/main.ts", "")
	lib := g.AddModule("/lib.ts", "")
	utils := g.AddModule("/utils.ts", "")
	mustAdd(t, g, main, lib)
	mustAdd(t, g, lib, utils)

	roots := g.FindAffectedRoots(utils)
	if len(roots) != 1 || roots[0] != main {
		t.Fatalf("FindAffectedRoots(utils) = %v, want [main]", roots)
	}
}

func TestFindAffectedRoots_CycleResilience(t *testing.T) {
	// main -> A, A <-> B; change B. main has no incoming, so it's the root.
	g := New()
	main := g.AddModule("/main.ts", "")
	a := g.AddModule("/a.ts", "")
	b := g.AddModule("/b.ts", "")
	mustAdd(t, g, main, a)
	mustAdd(t, g, a, b)
	mustAdd(t, g, b, a)

	roots := g.FindAffectedRoots(b)
	if len(roots) != 1 || roots[0] != main {
		t.Fatalf("FindAffectedRoots(b) = %v, want [main]", roots)
	}
}

func TestFindAffectedRoots_IsolatedCycleDegradesToSelf(t *testing.T) {
	g := New()
	a := g.AddModule("/a.ts", "")
	b := g.AddModule("/b.ts", "")
	mustAdd(t, g, a, b)
	mustAdd(t, g, b, a)

	roots := g.FindAffectedRoots(a)
	if len(roots) != 1 || roots[0] != a {
		t.Fatalf("FindAffectedRoots on isolated cycle = %v, want [a] (CycleNoRoot policy)", roots)
	}
}

func TestFindByPath_TotalOnExisting(t *testing.T) {
	g := New()
	id := g.AddModule("/src/app.ts", "")

	got, ok := g.FindByPath("/src/app.ts")
	if !ok || got != id {
		t.Fatalf("FindByPath = (%v, %v), want (%v, true)", got, ok, id)
	}

	if _, ok := g.FindByPath("/src/missing.ts"); ok {
		t.Fatal("FindByPath found a path that was never added")
	}
}

func TestSetFSPath_MarksVendor(t *testing.T) {
	g := New()
	id := g.AddModule("/node_modules/react/index.js", "")
	g.SetFSPath(id, "/repo/node_modules/react/index.js")

	m, _ := g.Module(id)
	if !m.IsVendor {
		t.Fatal("module under node_modules not marked vendor")
	}
}

func mustAdd(t *testing.T, g *Graph, from, to ID) {
	t.Helper()
	if err := g.AddDependency(from, to); err != nil {
		t.Fatalf("AddDependency(%v, %v): %v", from, to, err)
	}
}

func indexOf(order []ID) map[ID]int {
	m := make(map[ID]int, len(order))
	for i, id := range order {
		m[id] = i
	}
	return m
}
