package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gdg-garage/garage-workshops/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// FileHandler serves uploaded files at the URLs store.ViewURL hands out.
type FileHandler struct {
	blobs   store.Blobs
	project string
	log     *zap.Logger
}

func NewFileHandler(blobs store.Blobs, project string, log *zap.Logger) *FileHandler {
	return &FileHandler{blobs: blobs, project: project, log: log.Named("files")}
}

func (h *FileHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	if p := r.URL.Query().Get("project"); p != "" && p != h.project {
		http.NotFound(w, r)
		return
	}
	bucket, id := chi.URLParam(r, "bucket"), chi.URLParam(r, "id")

	rc, file, err := h.blobs.Open(r.Context(), bucket, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrInvalidName) {
			h.log.Warn("failed to open file", zap.String("bucket", bucket), zap.String("file_id", id), zap.Error(err))
		}
		http.NotFound(w, r)
		return
	}
	defer rc.Close()

	if !file.Public() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Debug("file transfer interrupted", zap.String("file_id", id), zap.Error(err))
	}
}
