package server

import (
	"net/http"
	"os"
	"path/filepath"
)

// handleSPA serves the teacher dashboard bundle out of dir. Routes the
// dashboard handles client-side (game views, map editor) resolve to no
// file on disk, so anything that is not a real asset gets index.html.
func handleSPA(dir string) http.HandlerFunc {
	assets := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")

	return func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Join(dir, filepath.Clean(r.URL.Path))
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			assets.ServeHTTP(w, r)
			return
		}

		http.ServeFile(w, r, index)
	}
}
