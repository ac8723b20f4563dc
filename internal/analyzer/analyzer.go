// Package analyzer extracts the exported-name set and import edges from
// already-compiled JavaScript text. It is syntactic, not a real parser: it
// never throws upward, and a malformed input just yields a partial result.
package analyzer

import (
	"regexp"
	"sort"
	"strings"

	"nexus/internal/graph"
)

// Result is the (exports, imports) pair the prod/dev orchestrators feed
// into the graph for one module.
type Result struct {
	Exports []string
	Imports []graph.ImportEdge
}

var (
	bareImportRe     = regexp.MustCompile(`import\s*['"]([^'"]+)['"]`)
	defaultImportRe  = regexp.MustCompile(`import\s+([A-Za-z_$][\w$]*)\s*,?\s*from\s*['"]([^'"]+)['"]`)
	namespaceImportRe = regexp.MustCompile(`import\s*\*\s*as\s+([A-Za-z_$][\w$]*)\s*from\s*['"]([^'"]+)['"]`)
	namedImportRe    = regexp.MustCompile(`import\s*(?:([A-Za-z_$][\w$]*)\s*,\s*)?\{([^}]*)\}\s*from\s*['"]([^'"]+)['"]`)
	dynamicImportRe  = regexp.MustCompile(`import\s*\(\s*['"]([^'"]+)['"]\s*\)`)

	exportStarRe      = regexp.MustCompile(`export\s*\*\s*from\s*['"]([^'"]+)['"]`)
	exportNamedFromRe = regexp.MustCompile(`export\s*\{([^}]*)\}\s*from\s*['"]([^'"]+)['"]`)
	exportNamedRe     = regexp.MustCompile(`export\s*\{([^}]*)\}\s*;?`)
	exportDefaultRe   = regexp.MustCompile(`export\s+default\b`)
	exportDeclRe      = regexp.MustCompile(`export\s+(?:async\s+)?(?:const|let|var|function\*?|class)\s+([A-Za-z_$][\w$]*)`)
	exportDestructRe  = regexp.MustCompile(`export\s+(?:const|let|var)\s*\{([^}]*)\}\s*=`)
)

type posEdge struct {
	start int
	edge  graph.ImportEdge
}

// Analyze parses already-compiled JS text and extracts its exported names
// and import/re-export edges. path is accepted for dialect selection but
// is unused by the purely-syntactic rules below.
func Analyze(source, path string) Result {
	var exports []string
	seenExport := make(map[string]bool)
	addExport := func(name string) {
		if name != "" && !seenExport[name] {
			exports = append(exports, name)
			seenExport[name] = true
		}
	}

	var edges []posEdge

	// export * from 'm' — no local exports, a star re-export edge.
	for _, m := range exportStarRe.FindAllStringSubmatchIndex(source, -1) {
		spec := source[m[2]:m[3]]
		edges = append(edges, posEdge{m[0], graph.ImportEdge{
			Source: spec,
			Kind:   graph.ReExportStar,
			Target: -1,
			IsStar: true,
		}})
	}

	// export { a, b as c } from 'm' — contributes exports + ReExportNamed.
	for _, m := range exportNamedFromRe.FindAllStringSubmatchIndex(source, -1) {
		list := source[m[2]:m[3]]
		spec := source[m[4]:m[5]]
		originals, renamed := parseSpecifierList(list)
		for _, name := range renamed {
			addExport(name)
		}
		edges = append(edges, posEdge{m[0], graph.ImportEdge{
			Source:     spec,
			Kind:       graph.ReExportNamed,
			Target:     -1,
			Specifiers: originals,
		}})
	}

	// export { a, b as c } (no from) — local re-export of already-bound names.
	for _, m := range exportNamedRe.FindAllStringSubmatchIndex(source, -1) {
		// Skip matches that are actually "export {...} from ..." (handled above).
		tail := source[m[1]:min(len(source), m[1]+20)]
		if strings.HasPrefix(strings.TrimSpace(tail), "from") {
			continue
		}
		list := source[m[2]:m[3]]
		_, renamed := parseSpecifierList(list)
		for _, name := range renamed {
			addExport(name)
		}
	}

	// export default ...
	if loc := exportDefaultRe.FindStringIndex(source); loc != nil {
		addExport("default")
	}

	// export const/let/var/function/class Name
	for _, m := range exportDeclRe.FindAllStringSubmatch(source, -1) {
		addExport(m[1])
	}

	// export const { a, b } = ...
	for _, m := range exportDestructRe.FindAllStringSubmatch(source, -1) {
		for _, name := range splitIdentifierList(m[1]) {
			addExport(name)
		}
	}

	// import 'm' (bare, side-effect only). Guard against also matching the
	// `from '...'` forms by checking there's no preceding identifier/brace.
	for _, m := range bareImportRe.FindAllStringSubmatchIndex(source, -1) {
		before := strings.TrimRight(source[:m[0]], " \t")
		if strings.HasSuffix(before, "from") {
			continue
		}
		spec := source[m[2]:m[3]]
		edges = append(edges, posEdge{m[0], graph.ImportEdge{
			Source: spec,
			Kind:   graph.StaticBare,
			Target: -1,
		}})
	}

	for _, m := range defaultImportRe.FindAllStringSubmatchIndex(source, -1) {
		spec := source[m[4]:m[5]]
		edges = append(edges, posEdge{m[0], graph.ImportEdge{
			Source:     spec,
			Kind:       graph.StaticDefault,
			Target:     -1,
			Specifiers: []string{"default"},
		}})
	}

	for _, m := range namespaceImportRe.FindAllStringSubmatchIndex(source, -1) {
		spec := source[m[4]:m[5]]
		edges = append(edges, posEdge{m[0], graph.ImportEdge{
			Source: spec,
			Kind:   graph.StaticNamespace,
			Target: -1,
			IsStar: true,
		}})
	}

	for _, m := range namedImportRe.FindAllStringSubmatchIndex(source, -1) {
		list := source[m[4]:m[5]]
		spec := source[m[6]:m[7]]
		originals, _ := parseSpecifierList(list)
		edges = append(edges, posEdge{m[0], graph.ImportEdge{
			Source:     spec,
			Kind:       graph.StaticNamed,
			Target:     -1,
			Specifiers: originals,
		}})
		if m[2] >= 0 {
			// combined `import Default, { a, b } from 'm'`.
			edges = append(edges, posEdge{m[0], graph.ImportEdge{
				Source:     spec,
				Kind:       graph.StaticDefault,
				Target:     -1,
				Specifiers: []string{"default"},
			}})
		}
	}

	for _, m := range dynamicImportRe.FindAllStringSubmatchIndex(source, -1) {
		spec := source[m[2]:m[3]]
		edges = append(edges, posEdge{m[0], graph.ImportEdge{
			Source:    spec,
			Kind:      graph.Dynamic,
			Target:    -1,
			IsDynamic: true,
		}})
	}

	sort.SliceStable(edges, func(i, j int) bool { return edges[i].start < edges[j].start })

	importInfo := make([]graph.ImportEdge, len(edges))
	for i, pe := range edges {
		importInfo[i] = pe.edge
	}

	return Result{Exports: exports, Imports: importInfo}
}

// parseSpecifierList splits a `a, b as c` import/export specifier list
// into (originalNames, exportedOrLocalNames).
func parseSpecifierList(list string) (originals, renamed []string) {
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if idx := strings.Index(part, " as "); idx >= 0 {
			orig := strings.TrimSpace(part[:idx])
			alias := strings.TrimSpace(part[idx+4:])
			originals = append(originals, orig)
			renamed = append(renamed, alias)
		} else {
			originals = append(originals, part)
			renamed = append(renamed, part)
		}
	}
	return originals, renamed
}

// splitIdentifierList splits a destructuring pattern's bound names,
// ignoring `: rename` and default-value tails.
func splitIdentifierList(list string) []string {
	var names []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if idx := strings.IndexAny(part, ":="); idx >= 0 {
			part = strings.TrimSpace(part[:idx])
		}
		if part != "" {
			names = append(names, part)
		}
	}
	return names
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
