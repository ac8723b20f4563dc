// Package partition assigns live modules to chunks via sync-reachability
// BFS from an entry (and from each async import target it discovers
// along the way), with first-chunk-wins dedup and a dedicated vendor
// bundle.
package partition

import (
	"fmt"
	"strings"

	"nexus/internal/graph"
)

// Chunk is one emitted JS file's module membership.
type Chunk struct {
	Name     string
	Modules  []graph.ID
	IsEntry  bool
}

// Result is the partitioner's output: the vendor bundle, the chunk list
// (entry first, then async chunks in discovery order), and the chunk_map
// for async targets.
type Result struct {
	Vendor   Chunk
	Chunks   []Chunk
	ChunkMap map[string]string // module path -> "/assets/<chunk_name>.js"
}

type workItem struct {
	root    graph.ID
	name    string
	isEntry bool
}

// Partition runs the algorithm from the chunk partitioner's contract:
// live is the set of reachable modules (the liveness closure); only
// members of live are ever assigned.
func Partition(g *graph.Graph, entry graph.ID, live map[graph.ID]bool) Result {
	assigned := make(map[graph.ID]string) // module id -> chunk name
	var chunkOrder []string
	chunkModules := make(map[string][]graph.ID)
	chunkIsEntry := make(map[string]bool)

	queue := []workItem{{entry, "main", true}}
	seenRoots := map[graph.ID]bool{entry: true}
	usedNames := map[string]bool{"main": true}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		if _, ok := chunkModules[item.name]; !ok {
			chunkOrder = append(chunkOrder, item.name)
			chunkIsEntry[item.name] = item.isEntry
		}

		bfsQueue := []graph.ID{item.root}
		bfsVisited := map[graph.ID]bool{item.root: true}

		for len(bfsQueue) > 0 {
			id := bfsQueue[0]
			bfsQueue = bfsQueue[1:]

			if !live[id] {
				continue
			}
			if _, already := assigned[id]; already {
				continue
			}
			assigned[id] = item.name
			chunkModules[item.name] = append(chunkModules[item.name], id)

			mod, ok := g.Module(id)
			if !ok {
				continue
			}
			for _, edge := range mod.ImportInfo {
				if edge.Target < 0 || !live[edge.Target] {
					continue
				}
				if edge.IsDynamic {
					if !seenRoots[edge.Target] {
						seenRoots[edge.Target] = true
						name := uniqueChunkName(usedNames, slugify(targetPath(g, edge.Target)), edge.Target)
						queue = append(queue, workItem{edge.Target, name, false})
					}
					continue
				}
				if !bfsVisited[edge.Target] {
					bfsVisited[edge.Target] = true
					bfsQueue = append(bfsQueue, edge.Target)
				}
			}
		}
	}

	var vendor Chunk
	var chunks []Chunk
	vendorSet := make(map[graph.ID]bool)

	for _, name := range chunkOrder {
		var keep []graph.ID
		for _, id := range chunkModules[name] {
			mod, ok := g.Module(id)
			if ok && mod.IsVendor {
				if !vendorSet[id] {
					vendorSet[id] = true
					vendor.Modules = append(vendor.Modules, id)
				}
				continue
			}
			keep = append(keep, id)
		}
		chunks = append(chunks, Chunk{Name: name, Modules: keep, IsEntry: chunkIsEntry[name]})
	}
	vendor.Name = "vendor"

	chunkMap := make(map[string]string)
	for _, c := range chunks {
		if c.IsEntry {
			continue
		}
		for _, id := range c.Modules {
			mod, ok := g.Module(id)
			if !ok {
				continue
			}
			chunkMap[mod.Path] = "/assets/" + c.Name + ".js"
		}
	}

	return Result{Vendor: vendor, Chunks: chunks, ChunkMap: chunkMap}
}

func targetPath(g *graph.Graph, id graph.ID) string {
	if mod, ok := g.Module(id); ok {
		return mod.Path
	}
	return ""
}

// uniqueChunkName appends the module id in hex to a slug when the bare slug
// collides with a chunk name already in use, per the design note that
// the slugifier alone can collide across distinct paths.
func uniqueChunkName(used map[string]bool, slug string, id graph.ID) string {
	name := "chunk-" + slug
	if !used[name] {
		used[name] = true
		return name
	}
	disambiguated := fmt.Sprintf("chunk-%s-%x", slug, uint32(id))
	used[disambiguated] = true
	return disambiguated
}

// slugify derives a chunk-name fragment from a module path: forward
// slashes replaced with dashes, leading dashes trimmed.
func slugify(path string) string {
	slug := strings.ReplaceAll(path, "/", "-")
	slug = strings.TrimLeft(slug, "-")
	slug = strings.TrimSuffix(slug, ".ts")
	slug = strings.TrimSuffix(slug, ".tsx")
	slug = strings.TrimSuffix(slug, ".js")
	slug = strings.TrimSuffix(slug, ".jsx")
	return slug
}
