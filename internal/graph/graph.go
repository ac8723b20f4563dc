// Package graph implements the module dependency graph: dense-id modules,
// adjacency lists, and the linearization/invalidation queries the
// orchestrators drive a build from.
package graph

import (
	"errors"
	"strings"
	"sync"
)

// ErrOutOfBounds is returned by AddDependency when either endpoint does not
// name an existing module.
var ErrOutOfBounds = errors.New("graph: module id out of bounds")

// ErrSelfEdge is returned by AddDependency when from == to.
var ErrSelfEdge = errors.New("graph: self-dependency not allowed")

// ID identifies a module within one Graph. IDs are dense, start at 0, and
// are never reused.
type ID int

// ImportKind classifies one import or export site.
type ImportKind int

const (
	StaticDefault ImportKind = iota
	StaticNamed
	StaticNamespace
	StaticBare
	ReExportNamed
	ReExportStar
	Dynamic
)

// ImportEdge records one import or re-export site inside a module's source.
type ImportEdge struct {
	Source      string // literal specifier as written
	Kind        ImportKind
	Target      ID // resolved module id; -1 if unresolved
	Specifiers  []string
	IsDynamic   bool
	IsStar      bool
}

// Asset is a binary side-output routed to disk by the asset compiler.
type Asset struct {
	Name string
	Data []byte
}

// Module is a single compilation unit keyed by its virtual Path.
type Module struct {
	ID         ID
	Path       string // /-rooted virtual identifier, unique
	FSPath     string // absolute host path
	Source     string // last-known compiled JS text
	SourceMap  string
	Version    int
	Exports    []string
	Imports    map[string]string // specifier -> resolved module path
	ImportInfo []ImportEdge
	IsVendor   bool
	CSS        string
	Asset      *Asset
}

// Graph owns all modules for one build/dev-server lifetime. Zero value is
// not usable; use New.
type Graph struct {
	mu       sync.RWMutex
	modules  []*Module
	byPath   map[string]ID
	outgoing [][]ID
	incoming [][]ID
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{byPath: make(map[string]ID)}
}

// AddModule appends a fresh module at version 1, or returns the id of an
// existing module at the same path (update-or-create, per contract).
func (g *Graph) AddModule(path, source string) ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id, ok := g.byPath[path]; ok {
		return id
	}

	id := ID(len(g.modules))
	g.modules = append(g.modules, &Module{
		ID:      id,
		Path:    path,
		Source:  source,
		Version: 1,
		Imports: make(map[string]string),
	})
	g.outgoing = append(g.outgoing, nil)
	g.incoming = append(g.incoming, nil)
	g.byPath[path] = id
	return id
}

// UpdateSource replaces a module's source and bumps its version by one. It
// does not touch edges; callers that learn of new/removed imports must
// call SetImports and reconcile edges themselves (see design note on
// topology changes).
func (g *Graph) UpdateSource(id ID, newSource string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if int(id) < 0 || int(id) >= len(g.modules) {
		return
	}
	m := g.modules[id]
	m.Source = newSource
	m.Version++
}

// AddDependency records a dependency edge, enforcing the no-self-edge and
// idempotent-edge invariants. Edges carry no static/dynamic flag; that
// distinction lives in each module's ImportInfo (ImportEdge.IsDynamic),
// and reachability treats all edges uniformly (see Graph.Outgoing).
func (g *Graph) AddDependency(from, to ID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.validLocked(from) || !g.validLocked(to) {
		return ErrOutOfBounds
	}
	if from == to {
		return ErrSelfEdge
	}
	for _, existing := range g.outgoing[from] {
		if existing == to {
			return nil
		}
	}
	g.outgoing[from] = append(g.outgoing[from], to)
	g.incoming[to] = append(g.incoming[to], from)
	return nil
}

func (g *Graph) validLocked(id ID) bool {
	return int(id) >= 0 && int(id) < len(g.modules)
}

// SetImports replaces a module's specifier->resolved-path map.
func (g *Graph) SetImports(id ID, imports map[string]string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.validLocked(id) {
		return
	}
	g.modules[id].Imports = imports
}

// SetImportInfo replaces a module's ordered ImportEdge list.
func (g *Graph) SetImportInfo(id ID, edges []ImportEdge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.validLocked(id) {
		return
	}
	g.modules[id].ImportInfo = edges
}

// UpdateExports replaces a module's exported-name list.
func (g *Graph) UpdateExports(id ID, names []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.validLocked(id) {
		return
	}
	g.modules[id].Exports = names
}

// SetSideOutputs records the optional CSS/asset side-outputs for a module.
func (g *Graph) SetSideOutputs(id ID, css string, asset *Asset) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.validLocked(id) {
		return
	}
	g.modules[id].CSS = css
	g.modules[id].Asset = asset
}

// SetVendor marks whether a module's fs path contains node_modules.
func (g *Graph) SetVendor(id ID, vendor bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.validLocked(id) {
		return
	}
	g.modules[id].IsVendor = vendor
}

// SetFSPath records the absolute host path for a module.
func (g *Graph) SetFSPath(id ID, fsPath string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.validLocked(id) {
		return
	}
	g.modules[id].FSPath = fsPath
	g.modules[id].IsVendor = strings.Contains(fsPath, "node_modules")
}

// FindByPath returns the id registered for path, if any.
func (g *Graph) FindByPath(path string) (ID, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.byPath[path]
	return id, ok
}

// Module returns a copy of the module record for id. The second return
// value is false for an out-of-range id.
func (g *Graph) Module(id ID) (Module, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.validLocked(id) {
		return Module{}, false
	}
	return *g.modules[id], true
}

// Len returns the number of modules in the graph.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.modules)
}

// Outgoing returns a copy of id's outgoing edge list.
func (g *Graph) Outgoing(id ID) []ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.validLocked(id) {
		return nil
	}
	out := make([]ID, len(g.outgoing[id]))
	copy(out, g.outgoing[id])
	return out
}

// Incoming returns a copy of id's incoming edge list.
func (g *Graph) Incoming(id ID) []ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.validLocked(id) {
		return nil
	}
	in := make([]ID, len(g.incoming[id]))
	copy(in, g.incoming[id])
	return in
}

// Linearize performs a post-order DFS from root over outgoing edges: every
// dependency appears before its dependent, cycles terminate because each
// node is visited once, and ties break by insertion order of outgoing[n].
func (g *Graph) Linearize(root ID) []ID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.validLocked(root) {
		return nil
	}

	visited := make(map[ID]bool)
	var order []ID

	var visit func(ID)
	visit = func(id ID) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, dep := range g.outgoing[id] {
			visit(dep)
		}
		order = append(order, id)
	}
	visit(root)
	return order
}

// FindAffectedRoots performs a reverse BFS over incoming edges from
// changed, returning every node with no incoming edges reached along the
// way. If the closure contains no such node (an isolated cycle with no
// path to anything else), it degrades to returning changed itself, per
// the CycleNoRoot policy.
func (g *Graph) FindAffectedRoots(changed ID) []ID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.validLocked(changed) {
		return nil
	}

	visited := map[ID]bool{changed: true}
	queue := []ID{changed}
	var roots []ID

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		in := g.incoming[id]
		if len(in) == 0 {
			roots = append(roots, id)
			continue
		}
		for _, parent := range in {
			if !visited[parent] {
				visited[parent] = true
				queue = append(queue, parent)
			}
		}
	}

	if len(roots) == 0 {
		return []ID{changed}
	}
	return roots
}

// AllIDs returns every module id currently in the graph, in insertion
// order.
func (g *Graph) AllIDs() []ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]ID, len(g.modules))
	for i := range g.modules {
		ids[i] = ID(i)
	}
	return ids
}
