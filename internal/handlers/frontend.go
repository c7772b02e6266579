package handlers

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FrontendHandler serves the built single-page app. Unknown non-API paths
// fall back to index.html so client-side routes survive a reload.
type FrontendHandler struct {
	root       string
	fileServer http.Handler
}

// NewFrontendHandler serves files under dir
func NewFrontendHandler(dir string) *FrontendHandler {
	return &FrontendHandler{
		root:       dir,
		fileServer: http.FileServer(http.Dir(dir)),
	}
}

// ServeHTTP implements http.Handler
func (h *FrontendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		respondJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}
	if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
		respondJSONError(w, http.StatusNotFound, "not_found", "Resource not found")
		return
	}

	clean := path.Clean("/" + r.URL.Path)
	if info, err := os.Stat(filepath.Join(h.root, filepath.FromSlash(clean))); err == nil && !info.IsDir() {
		h.fileServer.ServeHTTP(w, r)
		return
	}

	// http.ServeFile rejects paths containing ".."; the fallback must not
	index, err := os.Open(filepath.Join(h.root, "index.html"))
	if err != nil {
		respondJSONError(w, http.StatusNotFound, "not_found", "Resource not found")
		return
	}
	defer func() { _ = index.Close() }()
	info, err := index.Stat()
	if err != nil || info.IsDir() {
		respondJSONError(w, http.StatusNotFound, "not_found", "Resource not found")
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, "index.html", info.ModTime(), index)
}
