// Package shaker erases unused top-level exports from already-compiled JS
// source, given a per-module used-export set computed by the prod
// orchestrator's liveness closure. It is syntactic: it removes export
// shells (and the bodies that come with them), never touching
// non-exported top-level code.
package shaker

import (
	"regexp"
	"sort"
	"strings"
)

var (
	exportDefaultFuncClassRe = regexp.MustCompile(`export\s+default\s+(?:async\s+)?(?:function\b\*?\s*(?:[A-Za-z_$][\w$]*)?\s*\(|class\b(?:\s+[A-Za-z_$][\w$]*)?)`)
	exportDefaultExprRe      = regexp.MustCompile(`export\s+default\s+`)
	exportFuncClassRe        = regexp.MustCompile(`export\s+(?:async\s+)?(?:function\*?\s+([A-Za-z_$][\w$]*)\s*\(|class\s+([A-Za-z_$][\w$]*))`)
	exportDeclEqRe           = regexp.MustCompile(`export\s+(const|let|var)\s+([A-Za-z_$][\w$]*)\s*=`)
	exportDestructureEqRe    = regexp.MustCompile(`export\s+(const|let|var)\s*\{([^}]*)\}\s*=`)
	exportSpecifierListRe    = regexp.MustCompile(`export\s*\{([^}]*)\}\s*;?`)
)

type span struct {
	start, end  int
	replacement string
}

// Shake rewrites source, dropping any top-level export whose bound
// name(s) are absent from used. Applying Shake twice to the same
// (source, used) pair is idempotent: the second pass finds nothing left
// to drop.
func Shake(source string, used map[string]bool) string {
	var spans []span
	consumed := make([]bool, len(source)+1)

	markConsumed := func(start, end int) {
		for i := start; i < end && i < len(consumed); i++ {
			consumed[i] = true
		}
	}
	isConsumed := func(start int) bool {
		return start < len(consumed) && consumed[start]
	}

	// export default function F(...) {...} / class C {...}
	for _, m := range exportDefaultFuncClassRe.FindAllStringSubmatchIndex(source, -1) {
		if isConsumed(m[0]) {
			continue
		}
		openBrace := strings.IndexByte(source[m[1]:], '{')
		if openBrace < 0 {
			continue
		}
		bodyStart := m[1] + openBrace
		end := matchingBrace(source, bodyStart)
		if end < 0 {
			continue
		}
		end++ // include closing brace
		if !used["default"] {
			spans = append(spans, span{m[0], end, ""})
		}
		markConsumed(m[0], end)
	}

	// export default <expr>;
	for _, m := range exportDefaultExprRe.FindAllStringSubmatchIndex(source, -1) {
		if isConsumed(m[0]) {
			continue
		}
		end := topLevelSemicolon(source, m[1])
		if !used["default"] {
			spans = append(spans, span{m[0], end, ""})
		}
		markConsumed(m[0], end)
	}

	// export function F(...) {...} / export class C {...}
	for _, m := range exportFuncClassRe.FindAllStringSubmatchIndex(source, -1) {
		if isConsumed(m[0]) {
			continue
		}
		name := submatch(source, m, 2)
		if name == "" {
			name = submatch(source, m, 4)
		}
		openBrace := strings.IndexByte(source[m[1]:], '{')
		if openBrace < 0 {
			continue
		}
		bodyStart := m[1] + openBrace
		end := matchingBrace(source, bodyStart)
		if end < 0 {
			continue
		}
		end++
		if !used[name] {
			spans = append(spans, span{m[0], end, ""})
		}
		markConsumed(m[0], end)
	}

	// export const {a, b} = expr; — keep whole if any bound name used.
	for _, m := range exportDestructureEqRe.FindAllStringSubmatchIndex(source, -1) {
		if isConsumed(m[0]) {
			continue
		}
		names := splitIdentifierList(source[m[4]:m[5]])
		end := topLevelSemicolon(source, m[1])
		anyUsed := false
		for _, n := range names {
			if used[n] {
				anyUsed = true
				break
			}
		}
		if !anyUsed {
			spans = append(spans, span{m[0], end, ""})
		}
		markConsumed(m[0], end)
	}

	// export const x = expr;
	for _, m := range exportDeclEqRe.FindAllStringSubmatchIndex(source, -1) {
		if isConsumed(m[0]) {
			continue
		}
		name := source[m[4]:m[5]]
		end := topLevelSemicolon(source, m[1])
		if !used[name] {
			spans = append(spans, span{m[0], end, ""})
		}
		markConsumed(m[0], end)
	}

	// export { a, b as c };
	for _, m := range exportSpecifierListRe.FindAllStringSubmatchIndex(source, -1) {
		if isConsumed(m[0]) {
			continue
		}
		tail := source[m[1]:minInt(len(source), m[1]+20)]
		if strings.HasPrefix(strings.TrimSpace(tail), "from") {
			continue
		}
		list := source[m[2]:m[3]]
		kept := filterSpecifiers(list, used)
		if kept == "" {
			spans = append(spans, span{m[0], m[1], ""})
		} else {
			spans = append(spans, span{m[0], m[1], "export { " + kept + " };"})
		}
		markConsumed(m[0], m[1])
	}

	return applySpans(source, spans)
}

func submatch(source string, m []int, idx int) string {
	if idx+1 >= len(m) || m[idx] < 0 {
		return ""
	}
	return source[m[idx]:m[idx+1]]
}

func filterSpecifiers(list string, used map[string]bool) string {
	var kept []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		exported := part
		if idx := strings.Index(part, " as "); idx >= 0 {
			exported = strings.TrimSpace(part[idx+4:])
		}
		if used[exported] {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, ", ")
}

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

// matchingBrace returns the index of the brace matching the '{' at
// openIdx, via a simple depth counter. It is not string/comment-aware;
// this mirrors the rest of the toolchain's syntactic (not AST-based)
// approach.
func matchingBrace(source string, openIdx int) int {
	depth := 0
	for i := openIdx; i < len(source); i++ {
		switch source[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// topLevelSemicolon returns the index just past the first ';' at brace
// depth 0 starting from idx, or the end of source if none is found.
func topLevelSemicolon(source string, idx int) int {
	depth := 0
	for i := idx; i < len(source); i++ {
		switch source[i] {
		case '{', '(', '[':
			depth++
		case '}', ')', ']':
			depth--
		case ';':
			if depth <= 0 {
				return i + 1
			}
		}
	}
	return len(source)
}

func applySpans(source string, spans []span) string {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start > spans[j].start })
	out := source
	for _, s := range spans {
		out = out[:s.start] + s.replacement + out[s.end:]
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
