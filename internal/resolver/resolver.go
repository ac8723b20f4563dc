// Package resolver implements Node-style specifier resolution: relative
// and bare specifiers, node_modules upward walk, extension/index
// expansion, and package.json exports/main/module field handling.
package resolver

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned when no candidate file exists for a specifier.
var ErrNotFound = errors.New("resolver: module not found")

// ErrInvalidPath is returned when a specifier contains a NUL byte.
var ErrInvalidPath = errors.New("resolver: invalid path")

var extensionOrder = []string{".ts", ".tsx", ".js", ".jsx", ".json"}

// Resolver maps (origin, specifier) pairs to absolute filesystem paths. It
// is a value type after construction: every Resolve call is safe under
// concurrent readers, and package.json lookups are cached internally.
type Resolver struct {
	Platform string // "browser" (default) or "node"

	mu    sync.RWMutex
	pkgs  map[string]*packageJSON // keyed by absolute package.json path
}

// New returns a Resolver for the given platform ("browser" or "node"; any
// other value behaves as "browser").
func New(platform string) *Resolver {
	return &Resolver{Platform: platform, pkgs: make(map[string]*packageJSON)}
}

// Resolve maps specifier, as imported from origin (an absolute file path),
// to an absolute file that should execute.
func (r *Resolver) Resolve(origin, specifier string) (string, error) {
	if strings.ContainsRune(specifier, 0) {
		return "", ErrInvalidPath
	}

	if isRelativeOrAbsolute(specifier) {
		var base string
		if strings.HasPrefix(specifier, "/") {
			base = specifier
		} else {
			base = filepath.Join(filepath.Dir(origin), specifier)
		}
		return r.resolveFileOrDir(base)
	}

	return r.resolveBare(origin, specifier)
}

func isRelativeOrAbsolute(specifier string) bool {
	return strings.HasPrefix(specifier, "./") ||
		strings.HasPrefix(specifier, "../") ||
		specifier == "." || specifier == ".." ||
		strings.HasPrefix(specifier, "/")
}

// resolveBare walks upward from origin's directory, testing
// node_modules/<pkg> at each level; the first hit wins (rule 2).
func (r *Resolver) resolveBare(origin, specifier string) (string, error) {
	pkgName, subpath := splitPackageSpecifier(specifier)

	dir := filepath.Dir(origin)
	for {
		candidate := filepath.Join(dir, "node_modules", pkgName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			if resolved, ok := r.resolveFromPackage(candidate, subpath); ok {
				return resolved, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", ErrNotFound
}

// splitPackageSpecifier splits "react-dom/client" into ("react-dom",
// "./client") and "@scope/pkg/sub" into ("@scope/pkg", "./sub"). A bare
// package name yields subpath ".".
func splitPackageSpecifier(specifier string) (name, subpath string) {
	var rest string
	if strings.HasPrefix(specifier, "@") {
		parts := strings.SplitN(specifier, "/", 3)
		if len(parts) < 2 {
			return specifier, "."
		}
		name = parts[0] + "/" + parts[1]
		if len(parts) == 3 {
			rest = parts[2]
		}
	} else {
		parts := strings.SplitN(specifier, "/", 2)
		name = parts[0]
		if len(parts) == 2 {
			rest = parts[1]
		}
	}
	if rest == "" {
		return name, "."
	}
	return name, "./" + rest
}

// resolveFromPackage resolves a subpath ("." or "./foo") within a resolved
// package directory, honoring exports first, falling back to
// browser/module/main for the root subpath, and finally plain file/index
// probing.
func (r *Resolver) resolveFromPackage(pkgDir, subpath string) (string, bool) {
	pkg := r.loadPackageJSON(pkgDir)

	if pkg != nil && pkg.Exports != nil {
		if rel := matchExports(pkg.Exports, subpath, r.Platform); rel != "" {
			abs := filepath.Join(pkgDir, rel)
			if resolved, err := r.resolveFileOrDir(abs); err == nil {
				return resolved, true
			}
		}
	}

	if subpath == "." && pkg != nil {
		for _, val := range r.rootFieldOrder(pkg) {
			if val == "" {
				continue
			}
			abs := filepath.Join(pkgDir, val)
			if resolved, err := r.resolveFileOrDir(abs); err == nil {
				return resolved, true
			}
		}
	}

	// No exports/main/module field resolved the entry: fall through to
	// plain extension/index expansion rooted at the subpath itself.
	base := pkgDir
	if subpath != "." {
		base = filepath.Join(pkgDir, strings.TrimPrefix(subpath, "./"))
	}
	if resolved, err := r.resolveFileOrDir(base); err == nil {
		return resolved, true
	}
	return "", false
}

// rootFieldOrder returns the package.json root-entry fields in priority
// order per rule 4: browser, module, main.
func (r *Resolver) rootFieldOrder(pkg *packageJSON) []string {
	return []string{pkg.Browser, pkg.Module, pkg.Main}
}

// resolveFileOrDir expands extensions on a bare file candidate, or (for a
// directory) reads its package.json main fields, then probes
// index.<ext>.
func (r *Resolver) resolveFileOrDir(candidate string) (string, error) {
	if info, err := os.Stat(candidate); err == nil {
		if !info.IsDir() {
			return candidate, nil
		}
		return r.resolveDirectory(candidate)
	}

	// Extension expansion on a non-existent bare candidate.
	for _, ext := range extensionOrder {
		withExt := candidate + ext
		if info, err := os.Stat(withExt); err == nil && !info.IsDir() {
			return withExt, nil
		}
	}
	return "", ErrNotFound
}

// resolveDirectory honors a directory's package.json main fields, then
// index.<ext> probing, per rule 4.
func (r *Resolver) resolveDirectory(dir string) (string, error) {
	pkg := r.loadPackageJSON(dir)
	if pkg != nil {
		for _, val := range r.rootFieldOrder(pkg) {
			if val == "" {
				continue
			}
			abs := filepath.Join(dir, val)
			if info, err := os.Stat(abs); err == nil && !info.IsDir() {
				return abs, nil
			}
		}
	}

	for _, ext := range extensionOrder {
		candidate := filepath.Join(dir, "index"+ext)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", ErrNotFound
}

// loadPackageJSON reads and caches dir/package.json. Returns nil if the
// file is absent or unparseable.
func (r *Resolver) loadPackageJSON(dir string) *packageJSON {
	path := filepath.Join(dir, "package.json")

	r.mu.RLock()
	pkg, ok := r.pkgs[path]
	r.mu.RUnlock()
	if ok {
		return pkg
	}

	data, err := os.ReadFile(path)
	if err != nil {
		r.storeCached(path, nil)
		return nil
	}
	var parsed packageJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		r.storeCached(path, nil)
		return nil
	}

	r.storeCached(path, &parsed)
	return &parsed
}

func (r *Resolver) storeCached(path string, pkg *packageJSON) {
	r.mu.Lock()
	r.pkgs[path] = pkg
	r.mu.Unlock()
}
