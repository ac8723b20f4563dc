package devserver

import (
	"fmt"
	"regexp"
	"strings"
)

// Component detection for React Fast Refresh, applied to compiled .jsx/.tsx
// output before it is sent to the browser.
var (
	funcComponentRe  = regexp.MustCompile(`(?m)^(?:export\s+(?:default\s+)?)?function\s+([A-Z][a-zA-Z0-9_]*)\s*\(`)
	constComponentRe = regexp.MustCompile(`(?m)^(?:export\s+)?(?:const|let|var)\s+([A-Z][a-zA-Z0-9_]*)\s*=`)
)

// detectComponents returns the names of likely React components in
// compiled JS, used to decide whether a module qualifies for hot
// component refresh instead of a full reload.
func detectComponents(code string) []string {
	seen := map[string]bool{}
	var names []string
	for _, m := range funcComponentRe.FindAllStringSubmatch(code, -1) {
		if !seen[m[1]] {
			names = append(names, m[1])
			seen[m[1]] = true
		}
	}
	for _, m := range constComponentRe.FindAllStringSubmatch(code, -1) {
		if !seen[m[1]] {
			names = append(names, m[1])
			seen[m[1]] = true
		}
	}
	return names
}

// injectRefreshFooter appends the hot-refresh registration footer described
// by the runtime loader's state machine (§4.9): it registers the module's
// acceptance of its own updates and, for files carrying components, wires
// React Fast Refresh's registry so component state survives a swap.
func injectRefreshFooter(code, path string, components []string) string {
	var sb strings.Builder
	sb.WriteString(code)
	sb.WriteString("\n")
	if len(components) > 0 {
		fmt.Fprintf(&sb, "var __prevReg = window.$RefreshReg$;\n")
		fmt.Fprintf(&sb, "window.$RefreshReg$ = function(type, id) { window.__REACT_REFRESH__ && window.__REACT_REFRESH__.register(type, %q + \" \" + id); };\n", path)
		for _, name := range components {
			fmt.Fprintf(&sb, "window.$RefreshReg$(%s, %q);\n", name, name)
		}
		sb.WriteString("window.$RefreshReg$ = __prevReg;\n")
	}
	sb.WriteString("if (module.hot) { module.hot.accept(); }\n")
	return sb.String()
}
