// Package prodbuild implements the single-shot production build (§4.8):
// crawl from an entry point, compute the liveness closure, shake and
// CJS-transform every live module, partition into chunks, and emit the
// dist/ tree.
package prodbuild

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"nexus/internal/analyzer"
	"nexus/internal/cjs"
	"nexus/internal/compile"
	"nexus/internal/graph"
	"nexus/internal/partition"
	"nexus/internal/resolver"
	"nexus/internal/runtimejs"
	"nexus/internal/shaker"
)

var entryCandidates = []string{"./src/main.tsx", "./src/index.tsx", "./src/main.js", "./src/index.js"}

// ErrNoEntry is returned when none of the entry candidates resolve.
var ErrNoEntry = fmt.Errorf("prodbuild: no entry point found (tried %s)", strings.Join(entryCandidates, ", "))

// Options configures one production build.
type Options struct {
	Root     string
	Resolver *resolver.Resolver
	Compiler compile.Compiler
}

// Build runs the full pipeline and writes dist/ under opts.Root. It
// returns the entry's virtual path on success.
func Build(opts Options) (string, error) {
	dist := filepath.Join(opts.Root, "dist")
	assets := filepath.Join(dist, "assets")
	if err := os.RemoveAll(dist); err != nil {
		return "", fmt.Errorf("clean dist: %w", err)
	}
	if err := os.MkdirAll(assets, 0755); err != nil {
		return "", fmt.Errorf("create dist/assets: %w", err)
	}

	entryFSPath, entryVirtual, err := resolveEntry(opts)
	if err != nil {
		return "", err
	}

	g := graph.New()
	if err := crawl(g, opts, entryFSPath, entryVirtual); err != nil {
		return "", fmt.Errorf("crawl: %w", err)
	}

	entryID, ok := g.FindByPath(entryVirtual)
	if !ok {
		return "", ErrNoEntry
	}

	live := livenessClosure(g, entryID)

	if err := shakeAndTransform(g, entryID, live); err != nil {
		return "", fmt.Errorf("shake/transform: %w", err)
	}

	result := partition.Partition(g, entryID, live)

	if err := emitCSSAndAssets(g, entryID, live, assets); err != nil {
		return "", fmt.Errorf("emit assets: %w", err)
	}
	if err := emitVendor(g, result.Vendor, assets); err != nil {
		return "", fmt.Errorf("emit vendor: %w", err)
	}
	if err := emitChunks(g, result, entryVirtual, assets); err != nil {
		return "", fmt.Errorf("emit chunks: %w", err)
	}
	if err := emitHTML(opts.Root, dist); err != nil {
		return "", fmt.Errorf("emit html: %w", err)
	}

	return entryVirtual, nil
}

func resolveEntry(opts Options) (fsPath, virtual string, err error) {
	// Resolve treats origin as a file path and resolves relative specifiers
	// against its directory; a synthetic file inside Root makes that
	// directory Root itself.
	origin := filepath.Join(opts.Root, "__entry__")
	for _, candidate := range entryCandidates {
		resolved, resolveErr := opts.Resolver.Resolve(origin, candidate)
		if resolveErr != nil {
			continue
		}
		rel, relErr := filepath.Rel(opts.Root, resolved)
		if relErr != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		return resolved, "/" + filepath.ToSlash(rel), nil
	}
	return "", "", ErrNoEntry
}

// crawl performs the BFS from entry described in §4.8 step 3, compiling
// and analyzing each discovered module and recording it (and its edges)
// in g.
func crawl(g *graph.Graph, opts Options, entryFSPath, entryVirtual string) error {
	type work struct {
		fsPath, virtual string
	}
	queue := []work{{entryFSPath, entryVirtual}}
	visited := map[string]bool{entryVirtual: true}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		data, err := os.ReadFile(item.fsPath)
		if err != nil {
			continue // IoNotFound: skip, graph stays partial for this node
		}

		out, err := opts.Compiler.Compile(item.virtual, data)
		if err != nil {
			return fmt.Errorf("compile %s: %w", item.virtual, err)
		}

		id := g.AddModule(item.virtual, out.Code)
		g.SetFSPath(id, item.fsPath)
		g.SetSideOutputs(id, out.CSS, out.Asset)

		ext := strings.ToLower(filepath.Ext(item.virtual))
		if ext == ".css" || compile.IsBinaryAssetExt(ext) {
			continue
		}

		result := analyzer.Analyze(out.Code, item.virtual)
		g.UpdateExports(id, result.Exports)

		imports := make(map[string]string)
		edges := make([]graph.ImportEdge, 0, len(result.Imports))
		for _, edge := range result.Imports {
			resolved, resolveErr := opts.Resolver.Resolve(item.fsPath, edge.Source)
			if resolveErr != nil {
				edge.Target = -1
				edges = append(edges, edge)
				continue
			}
			depVirtual := virtualPath(opts.Root, resolved)

			if !visited[depVirtual] {
				visited[depVirtual] = true
				queue = append(queue, work{resolved, depVirtual})
			}

			depID, ok := g.FindByPath(depVirtual)
			if !ok {
				depID = g.AddModule(depVirtual, "")
				g.SetFSPath(depID, resolved)
			}
			if addErr := g.AddDependency(id, depID); addErr != nil && addErr != graph.ErrSelfEdge {
				return fmt.Errorf("add dependency %s -> %s: %w", item.virtual, depVirtual, addErr)
			}
			imports[edge.Source] = depVirtual
			edge.Target = depID
			edges = append(edges, edge)
		}
		g.SetImports(id, imports)
		g.SetImportInfo(id, edges)
	}
	return nil
}

func virtualPath(root, resolved string) string {
	rel, err := filepath.Rel(root, resolved)
	if err == nil && !strings.HasPrefix(rel, "..") {
		return "/" + filepath.ToSlash(rel)
	}
	return "/" + filepath.ToSlash(strings.TrimPrefix(resolved, string(filepath.Separator)))
}

// livenessClosure walks every reachable edge (sync and dynamic alike)
// from entry, producing the set of modules the shaker and partitioner
// are allowed to touch. This closure — not the shaker — owns reachability,
// per the design note that the shaker only erases unused exports within
// an already-live module.
func livenessClosure(g *graph.Graph, entry graph.ID) map[graph.ID]bool {
	live := map[graph.ID]bool{entry: true}
	queue := []graph.ID{entry}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, dep := range g.Outgoing(id) {
			if !live[dep] {
				live[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return live
}

// shakeAndTransform runs the CJS transformer over every live module, in
// parallel via errgroup since neither phase suspends or shares mutable
// state across modules. The tree-shaker only runs over script modules:
// CSS/asset modules carry no exports worth erasing, but still need the
// same ESM->CJS rewrite applied before they're wrapped into a factory
// alongside everything else (the Rust original transforms every chunk
// module unconditionally).
func shakeAndTransform(g *graph.Graph, entry graph.ID, live map[graph.ID]bool) error {
	var eg errgroup.Group
	for id := range live {
		id := id
		eg.Go(func() error {
			mod, ok := g.Module(id)
			if !ok {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(mod.Path))
			source := mod.Source
			if ext != ".css" && !compile.IsBinaryAssetExt(ext) {
				used := usedExportSet(g, id, entry, live)
				source = shaker.Shake(source, used)
			}
			transformed := cjs.Transform(source, mod.Imports)
			g.UpdateSource(id, transformed)
			return nil
		})
	}
	return eg.Wait()
}

// usedExportSet collects, across every live importer of id, which of id's
// exported names are actually referenced, so the shaker can erase the
// rest. A module with any importer that imports it with IsStar (namespace
// or re-export-star) is treated as fully used: the syntactic shaker
// cannot safely prove individual names are dead in that case. The entry
// module has no importers of its own, but its exports are still reachable
// from the application's root (e.g. a self-reference, or a consumer
// outside the crawled graph), so they're seeded as used unconditionally.
func usedExportSet(g *graph.Graph, id, entry graph.ID, live map[graph.ID]bool) map[string]bool {
	used := make(map[string]bool)
	if id == entry {
		if mod, ok := g.Module(id); ok {
			for _, name := range mod.Exports {
				used[name] = true
			}
		}
	}
	for _, importerID := range g.Incoming(id) {
		if !live[importerID] {
			continue
		}
		importer, ok := g.Module(importerID)
		if !ok {
			continue
		}
		for _, edge := range importer.ImportInfo {
			if edge.Target != id {
				continue
			}
			if edge.IsStar || edge.Kind == graph.ReExportStar || edge.Kind == graph.StaticNamespace {
				mod, ok := g.Module(id)
				if ok {
					for _, name := range mod.Exports {
						used[name] = true
					}
				}
				continue
			}
			for _, name := range edge.Specifiers {
				used[name] = true
			}
		}
	}
	return used
}

// emitCSSAndAssets concatenates CSS side-outputs in graph-traversal order
// (§4.8 step 8) and writes out binary asset side-outputs.
func emitCSSAndAssets(g *graph.Graph, entry graph.ID, live map[graph.ID]bool, assetsDir string) error {
	var css strings.Builder
	for _, id := range g.Linearize(entry) {
		mod, ok := g.Module(id)
		if !ok || !live[id] {
			continue
		}
		if mod.CSS != "" {
			css.WriteString(mod.CSS)
			css.WriteString("\n")
		}
		if mod.Asset != nil {
			if err := os.WriteFile(filepath.Join(assetsDir, mod.Asset.Name), mod.Asset.Data, 0644); err != nil {
				return err
			}
		}
	}
	return os.WriteFile(filepath.Join(assetsDir, "style.css"), []byte(css.String()), 0644)
}

func emitVendor(g *graph.Graph, vendor partition.Chunk, assetsDir string) error {
	var sb strings.Builder
	sb.WriteString(runtimejs.Source)
	sb.WriteString("\n")
	for _, id := range vendor.Modules {
		mod, ok := g.Module(id)
		if !ok {
			continue
		}
		sb.WriteString(runtimejs.WrapModule(mod.Path, mod.Source))
	}
	return os.WriteFile(filepath.Join(assetsDir, "vendor.js"), []byte(sb.String()), 0644)
}

func emitChunks(g *graph.Graph, result partition.Result, entryVirtual, assetsDir string) error {
	for _, chunk := range result.Chunks {
		var sb strings.Builder
		for _, id := range chunk.Modules {
			mod, ok := g.Module(id)
			if !ok {
				continue
			}
			sb.WriteString(runtimejs.WrapModule(mod.Path, mod.Source))
		}
		if chunk.IsEntry {
			sb.WriteString(runtimejs.Bootstrap(entryVirtual, result.ChunkMap))
		}
		name := chunk.Name
		if chunk.IsEntry {
			name = "main"
		}
		if err := os.WriteFile(filepath.Join(assetsDir, name+".js"), []byte(sb.String()), 0644); err != nil {
			return err
		}
	}
	return nil
}

const injectedTags = `
    <link rel="stylesheet" href="/assets/style.css">
    <script src="/assets/vendor.js"></script>
    <script src="/assets/main.js"></script>
`

func emitHTML(root, dist string) error {
	htmlPath := filepath.Join(root, "index.html")
	data, err := os.ReadFile(htmlPath)
	if err != nil {
		minimal := "<!DOCTYPE html><html><body>" + injectedTags + "</body></html>"
		return os.WriteFile(filepath.Join(dist, "index.html"), []byte(minimal), 0644)
	}

	html := string(data)
	if strings.Contains(html, "</body>") {
		html = strings.Replace(html, "</body>", injectedTags+"</body>", 1)
	} else {
		html += injectedTags
	}
	return os.WriteFile(filepath.Join(dist, "index.html"), []byte(html), 0644)
}
