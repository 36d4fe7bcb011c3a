package api

import (
	"errors"
	"net/http"

	"github.com/campusfound/campusfound/internal/images"
)

// ImagesHandler serves stored item photos.
type ImagesHandler struct {
	Images *images.DBStore
}

// Get handles GET /api/images/{id}.
func (h *ImagesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, "invalid image id")
		return
	}

	data, mime, err := h.Images.Get(r.Context(), id)
	if errors.Is(err, images.ErrNoImage) {
		jsonError(w, http.StatusNotFound, "image not found")
		return
	}
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to load image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
