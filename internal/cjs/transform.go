// Package cjs rewrites static ESM import/export syntax (and literal
// dynamic imports) into the CommonJS-style protocol the runtime loader
// understands, by span-replacement: collect (start, end, replacement)
// triples, sort by start descending, and apply in place. This preserves
// comments and whitespace outside the rewritten spans.
package cjs

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	bareImportRe      = regexp.MustCompile(`import\s*['"]([^'"]+)['"]\s*;?`)
	defaultImportRe    = regexp.MustCompile(`import\s+([A-Za-z_$][\w$]*)\s*from\s*['"]([^'"]+)['"]\s*;?`)
	namespaceImportRe  = regexp.MustCompile(`import\s*\*\s*as\s+([A-Za-z_$][\w$]*)\s*from\s*['"]([^'"]+)['"]\s*;?`)
	namedImportRe      = regexp.MustCompile(`import\s*(?:([A-Za-z_$][\w$]*)\s*,\s*)?\{([^}]*)\}\s*from\s*['"]([^'"]+)['"]\s*;?`)
	dynamicImportLitRe = regexp.MustCompile(`import\s*\(\s*['"]([^'"]+)['"]\s*\)`)

	exportDefaultKeywordRe = regexp.MustCompile(`export\s+default\s+`)
	exportConstRe          = regexp.MustCompile(`export\s+(const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*([^;\n]*);?`)
	exportNamedFromRe      = regexp.MustCompile(`export\s*\{([^}]*)\}\s*from\s*['"]([^'"]+)['"]\s*;?`)
	exportNamedRe          = regexp.MustCompile(`export\s*\{([^}]*)\}\s*;?`)
	exportFuncClassRe      = regexp.MustCompile(`export\s+((?:async\s+)?function\b\s*\*?\s*|class\s+)([A-Za-z_$][\w$]*)`)
)

type span struct {
	start, end  int
	replacement string
}

// Transform rewrites source (already analyzed into imports, a map from
// literal specifier to resolved module path) into the CJS wire protocol.
// Unresolved specifiers pass through unchanged (fallback to the literal
// string), and non-literal dynamic-import arguments are left untouched.
func Transform(source string, imports map[string]string) string {
	var spans []span

	resolve := func(spec string) string {
		if r, ok := imports[spec]; ok {
			return r
		}
		return spec
	}

	for _, m := range namedImportRe.FindAllStringSubmatchIndex(source, -1) {
		list := source[m[4]:m[5]]
		spec := source[m[6]:m[7]]
		resolved := resolve(spec)
		var sb strings.Builder
		if m[2] >= 0 {
			// combined `import Default, { a, b } from 'm'`.
			defaultName := source[m[2]:m[3]]
			fmt.Fprintf(&sb, "const %s = require(%q).default;\n", defaultName, resolved)
		}
		for _, part := range strings.Split(list, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			orig, local := part, part
			if idx := strings.Index(part, " as "); idx >= 0 {
				orig = strings.TrimSpace(part[:idx])
				local = strings.TrimSpace(part[idx+4:])
			}
			fmt.Fprintf(&sb, "const %s = require(%q).%s;\n", local, resolved, orig)
		}
		spans = append(spans, span{m[0], m[1], sb.String()})
	}

	for _, m := range namespaceImportRe.FindAllStringSubmatchIndex(source, -1) {
		name := source[m[2]:m[3]]
		spec := source[m[4]:m[5]]
		spans = append(spans, span{m[0], m[1], fmt.Sprintf("const %s = require(%q);", name, resolve(spec))})
	}

	for _, m := range defaultImportRe.FindAllStringSubmatchIndex(source, -1) {
		name := source[m[2]:m[3]]
		spec := source[m[4]:m[5]]
		spans = append(spans, span{m[0], m[1], fmt.Sprintf("const %s = require(%q).default;", name, resolve(spec))})
	}

	for _, m := range bareImportRe.FindAllStringSubmatchIndex(source, -1) {
		if overlapsAny(spans, m[0], m[1]) {
			continue
		}
		before := strings.TrimRight(source[:m[0]], " \t")
		if strings.HasSuffix(before, "from") {
			continue
		}
		spec := source[m[2]:m[3]]
		spans = append(spans, span{m[0], m[1], fmt.Sprintf("require(%q);", resolve(spec))})
	}

	for _, m := range dynamicImportLitRe.FindAllStringSubmatchIndex(source, -1) {
		spec := source[m[2]:m[3]]
		spans = append(spans, span{m[0], m[1], fmt.Sprintf("__nexus_import__(%q)", resolve(spec))})
	}

	for _, m := range exportNamedFromRe.FindAllStringSubmatchIndex(source, -1) {
		list := source[m[2]:m[3]]
		spec := source[m[4]:m[5]]
		resolved := resolve(spec)
		var sb strings.Builder
		for _, name := range specifierExportedNames(list) {
			fmt.Fprintf(&sb, "const %s = require(%q).%s;\n", name.local, resolved, name.orig)
			writeDefineProperty(&sb, name.local)
		}
		spans = append(spans, span{m[0], m[1], sb.String()})
	}

	for _, m := range exportNamedRe.FindAllStringSubmatchIndex(source, -1) {
		if overlapsAny(spans, m[0], m[1]) {
			continue
		}
		tail := source[m[1]:min(len(source), m[1]+20)]
		if strings.HasPrefix(strings.TrimSpace(tail), "from") {
			continue
		}
		list := source[m[2]:m[3]]
		var sb strings.Builder
		for _, name := range specifierExportedNames(list) {
			// name.local is the exported name; name.orig is the local binding.
			fmt.Fprintf(&sb, "Object.defineProperty(exports, %q, {enumerable:true, get(){return %s;}});\n", name.local, name.orig)
		}
		spans = append(spans, span{m[0], m[1], sb.String()})
	}

	// export function F / export class C: drop the keyword and define the
	// getter ahead of the declaration (the getter is only read later).
	for _, m := range exportFuncClassRe.FindAllStringSubmatchIndex(source, -1) {
		var sb strings.Builder
		writeDefineProperty(&sb, source[m[4]:m[5]])
		spans = append(spans, span{m[0], m[2], sb.String()})
	}

	for _, m := range exportConstRe.FindAllStringSubmatchIndex(source, -1) {
		decl := source[m[2]:m[3]]
		name := source[m[4]:m[5]]
		value := source[m[6]:m[7]]
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s %s = %s;\n", decl, name, value)
		writeDefineProperty(&sb, name)
		spans = append(spans, span{m[0], m[1], sb.String()})
	}

	if loc := exportDefaultKeywordRe.FindStringIndex(source); loc != nil {
		spans = append(spans, span{loc[0], loc[1], "exports.default = "})
	}

	// import.meta.hot has no meaning once a module is wrapped into a CJS
	// factory; the runtime hands every factory the equivalent module.hot.
	return strings.ReplaceAll(applySpans(source, spans), "import.meta.hot", "module.hot")
}

type exportedName struct{ orig, local string }

func specifierExportedNames(list string) []exportedName {
	var names []exportedName
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		orig, local := part, part
		if idx := strings.Index(part, " as "); idx >= 0 {
			orig = strings.TrimSpace(part[:idx])
			local = strings.TrimSpace(part[idx+4:])
		}
		names = append(names, exportedName{orig, local})
	}
	return names
}

func writeDefineProperty(sb *strings.Builder, name string) {
	fmt.Fprintf(sb, "Object.defineProperty(exports, %q, {enumerable:true, get(){return %s;}});\n", name, name)
}

func overlapsAny(spans []span, start, end int) bool {
	for _, s := range spans {
		if start < s.end && end > s.start {
			return true
		}
	}
	return false
}

func applySpans(source string, spans []span) string {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start > spans[j].start })

	out := source
	for _, s := range spans {
		out = out[:s.start] + s.replacement + out[s.end:]
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
