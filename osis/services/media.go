package services

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/claveora/OSIS-Integrated-Administration/osis/storage"
)

// MediaFiles serves locally stored proker media. It is mounted (behind a
// StripPrefix) at the path that local media urls point at, so the media_url
// stored on a ProkerMedia row resolves directly against this handler.
func MediaFiles(store storage.Storage) http.Handler {
	handler := func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		if path == "" || strings.Contains(path, "..") {
			http.Error(w, "invalid media path", http.StatusBadRequest)
			return
		}

		size, err := store.Size(path)
		if err != nil {
			http.Error(w, "media file not found", http.StatusNotFound)
			return
		}

		file, err := store.Read(path)
		if err != nil {
			http.Error(w, "media file not found", http.StatusNotFound)
			return
		}
		defer file.Close()

		if contentType := mime.TypeByExtension(filepath.Ext(path)); contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))

		if _, err := io.Copy(w, file); err != nil {
			slog.Error("error streaming media file", "path", path, "error", err)
		}
	}

	return http.HandlerFunc(handler)
}
