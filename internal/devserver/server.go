// Package devserver implements the request-driven dev pipeline: compile,
// analyze, resolve, graph-update per request, HMR over WebSocket, and the
// small set of /_nexus/* diagnostic routes.
package devserver

import (
	"fmt"
	"log"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"nexus/internal/analyzer"
	"nexus/internal/cjs"
	"nexus/internal/compile"
	"nexus/internal/graph"
	"nexus/internal/platform"
	"nexus/internal/resolver"
	"nexus/internal/runtimejs"
)

var scriptExts = map[string]bool{".ts": true, ".tsx": true, ".js": true, ".jsx": true}
var assetExts = map[string]bool{
	".css": true, ".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".svg": true, ".wasm": true, ".json": true,
}

// Server is the dev HTTP + WebSocket server described in §4.7 and §6. One
// Server owns exactly one Graph, guarded internally by its own lock; the
// Resolver is immutable after construction and safely shared across
// concurrent requests.
type Server struct {
	root     string
	graph    *graph.Graph
	resolver *resolver.Resolver
	compiler compile.Compiler
	watcher  platform.FileWatcher
	ws       *wsManager

	mu         sync.Mutex // serializes compile->analyze->resolve->graph-update per §5
	sourcemaps map[string]string
}

// New constructs a dev server rooted at projectRoot. watcher may be nil, in
// which case file-change-driven HMR is disabled (requests still compile
// on demand).
func New(projectRoot string, r *resolver.Resolver, c compile.Compiler, watcher platform.FileWatcher) *Server {
	return &Server{
		root:       projectRoot,
		graph:      graph.New(),
		resolver:   r,
		compiler:   c,
		watcher:    watcher,
		ws:         newWSManager(),
		sourcemaps: make(map[string]string),
	}
}

// Watch starts draining watcher events in the background, recompiling
// changed modules and broadcasting HMR updates. It returns immediately.
func (s *Server) Watch() {
	if s.watcher == nil {
		return
	}
	go func() {
		for {
			select {
			case evt, ok := <-s.watcher.Events():
				if !ok {
					return
				}
				s.handleFileEvent(evt)
			case err, ok := <-s.watcher.Errors():
				if !ok {
					return
				}
				log.Printf("nexus: watch error: %v", err)
			}
		}
	}()
}

func (s *Server) handleFileEvent(evt platform.FileWatchEvent) {
	rel, err := filepath.Rel(s.root, evt.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	virtualPath := "/" + filepath.ToSlash(rel)

	if _, ok := s.graph.FindByPath(virtualPath); !ok {
		return
	}

	data, err := os.ReadFile(evt.Name)
	if err != nil {
		return // IoNotFound: drop the event, next successful read heals the graph
	}
	_, components, err := s.compileAndLink(virtualPath, evt.Name, data)
	if err != nil {
		log.Printf("nexus: %s: %v", virtualPath, err)
		return
	}

	ext := strings.ToLower(filepath.Ext(virtualPath))
	switch {
	case ext == ".css":
		s.ws.broadcast(hmrMessage{Type: "update", Paths: []string{virtualPath}})
	case virtualPath == s.entryPath() || len(components) == 0:
		s.ws.broadcast(hmrMessage{Type: "reload"})
	default:
		s.ws.broadcast(hmrMessage{Type: "update", Paths: []string{virtualPath}})
	}
}

func (s *Server) entryPath() string {
	for _, candidate := range []string{"/src/main.tsx", "/src/index.tsx", "/src/main.js", "/src/index.js"} {
		if _, ok := s.graph.FindByPath(candidate); ok {
			return candidate
		}
	}
	return ""
}

// ServeHTTP routes per §6.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/ws":
		s.ws.handle(w, r)
		return
	case r.URL.Path == "/__nexus_react_refresh":
		s.serveReactRefresh(w, r)
		return
	case r.URL.Path == "/_nexus/chunk":
		s.serveChunk(w, r)
		return
	case strings.HasPrefix(r.URL.Path, "/_nexus/sourcemap/"):
		s.serveSourcemap(w, r)
		return
	}

	ext := strings.ToLower(path.Ext(r.URL.Path))
	if scriptExts[ext] || assetExts[ext] {
		s.serveModule(w, r)
		return
	}

	s.serveStatic(w, r)
}

func normalizePath(urlPath string) (string, error) {
	if urlPath == "" {
		return "", fmt.Errorf("path escape: empty path")
	}
	for _, segment := range strings.Split(urlPath, "/") {
		if segment == ".." {
			return "", fmt.Errorf("path escape: %q", urlPath)
		}
	}
	clean := path.Clean(urlPath)
	if !strings.HasPrefix(clean, "/") {
		clean = "/" + clean
	}
	return clean, nil
}

func (s *Server) serveModule(w http.ResponseWriter, r *http.Request) {
	virtualPath, err := normalizePath(r.URL.Path)
	if err != nil {
		http.Error(w, "bad path", http.StatusBadRequest)
		return
	}

	fsPath := filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(virtualPath, "/")))
	data, err := os.ReadFile(fsPath)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	ext := strings.ToLower(path.Ext(virtualPath))
	if assetExts[ext] && ext != ".css" && ext != ".json" && r.URL.Query().Has("raw") {
		mimeType := mime.TypeByExtension(ext)
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", mimeType)
		w.Write(data)
		return
	}

	out, components, err := s.compileAndLink(virtualPath, fsPath, data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	code := out.Code
	if ext == ".tsx" || ext == ".jsx" {
		code = injectRefreshFooter(code, virtualPath, components)
	}

	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("X-Apex-Intercept", "true")
	id, _ := s.graph.FindByPath(virtualPath)
	fmt.Fprintf(w, "%s\n//# sourceMappingURL=/_nexus/sourcemap/%d\n", code, id)
}

// compileAndLink runs the per-request compile -> analyze -> resolve ->
// graph-update pipeline (§4.7, §5: strictly sequential within one request,
// serialized across concurrent requests by s.mu).
func (s *Server) compileAndLink(virtualPath, fsPath string, data []byte) (compile.Output, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.compiler.Compile(virtualPath, data)
	if err != nil {
		return compile.Output{}, nil, fmt.Errorf("compile %s: %w", virtualPath, err)
	}

	result := analyzer.Analyze(out.Code, virtualPath)

	id, existed := s.graph.FindByPath(virtualPath)
	if !existed {
		id = s.graph.AddModule(virtualPath, out.Code)
	} else {
		s.graph.UpdateSource(id, out.Code)
	}
	s.graph.SetFSPath(id, fsPath)
	s.graph.UpdateExports(id, result.Exports)
	s.graph.SetSideOutputs(id, out.CSS, out.Asset)

	imports := make(map[string]string)
	edges := make([]graph.ImportEdge, 0, len(result.Imports))
	for _, edge := range result.Imports {
		resolved, err := s.resolver.Resolve(fsPath, edge.Source)
		if err != nil {
			log.Printf("nexus: resolve %s from %s: %v", edge.Source, virtualPath, err)
			edge.Target = -1
			edges = append(edges, edge)
			continue
		}
		rel, relErr := filepath.Rel(s.root, resolved)
		var depPath string
		if relErr == nil && !strings.HasPrefix(rel, "..") {
			depPath = "/" + filepath.ToSlash(rel)
		} else {
			depPath = "/node_modules/" + filepath.ToSlash(strings.TrimPrefix(resolved, s.root))
		}

		depID, ok := s.graph.FindByPath(depPath)
		if !ok {
			depID = s.graph.AddModule(depPath, "")
			s.graph.SetFSPath(depID, resolved)
		}
		if err := s.graph.AddDependency(id, depID); err != nil && err != graph.ErrSelfEdge {
			log.Printf("nexus: add dependency %s -> %s: %v", virtualPath, depPath, err)
		}
		imports[edge.Source] = depPath
		edge.Target = depID
		edges = append(edges, edge)
	}
	s.graph.SetImports(id, imports)
	s.graph.SetImportInfo(id, edges)

	var components []string
	if strings.HasSuffix(virtualPath, ".tsx") || strings.HasSuffix(virtualPath, ".jsx") {
		components = detectComponents(out.Code)
	}

	s.sourcemaps[fmt.Sprint(id)] = out.SourceMap
	return out, components, nil
}

func (s *Server) serveChunk(w http.ResponseWriter, r *http.Request) {
	entry := r.URL.Query().Get("entry")
	entry, err := url.QueryUnescape(entry)
	if err != nil {
		http.Error(w, "bad entry", http.StatusBadRequest)
		return
	}
	id, ok := s.graph.FindByPath(entry)
	if !ok {
		http.NotFound(w, r)
		return
	}

	order := s.graph.Linearize(id)
	w.Header().Set("Content-Type", "application/javascript")
	w.Write([]byte(runtimejs.Source))
	for _, modID := range order {
		m, ok := s.graph.Module(modID)
		if !ok {
			continue
		}
		// m.Source is the compiled ESM text; the chunk response wraps every
		// module into a __nexus_register__ factory, so it needs the same
		// ESM->CJS rewrite the prod build applies before bundling.
		transformed := cjs.Transform(m.Source, m.Imports)
		w.Write([]byte(runtimejs.WrapModule(m.Path, transformed)))
	}
	fmt.Fprintf(w, "__nexus_require__(%q);\n", entry)
}

func (s *Server) serveSourcemap(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/_nexus/sourcemap/")
	s.mu.Lock()
	sourcemap := s.sourcemaps[id]
	s.mu.Unlock()
	if sourcemap == "" {
		sourcemap = "{}"
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(sourcemap))
}

func (s *Server) serveReactRefresh(w http.ResponseWriter, r *http.Request) {
	refreshPath := filepath.Join(s.root, "node_modules", "react-refresh", "cjs", "react-refresh-runtime.development.js")
	data, err := os.ReadFile(refreshPath)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/javascript")
	w.Write(data)
}

func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	virtualPath, err := normalizePath(r.URL.Path)
	if err != nil {
		http.Error(w, "bad path", http.StatusBadRequest)
		return
	}
	fsPath := filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(virtualPath, "/")))
	http.ServeFile(w, r, fsPath)
}
