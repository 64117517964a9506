package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// spaHandler serves a built single-page UI bundle. Paths that don't match a
// file fall back to index.html so client-side routing keeps working.
type spaHandler struct {
	dir        string
	fileServer http.Handler
}

func newSPAHandler(dir string) http.Handler {
	return &spaHandler{
		dir:        dir,
		fileServer: http.FileServer(http.Dir(dir)),
	}
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	if path != "" {
		if _, err := os.Stat(filepath.Join(h.dir, filepath.Clean(path))); err == nil {
			h.fileServer.ServeHTTP(w, r)
			return
		}
	}

	http.ServeFile(w, r, filepath.Join(h.dir, "index.html"))
}
