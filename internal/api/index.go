package api

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
)

// handleIndex serves the configured index page, read fresh on every request
// so that it can be edited while the server runs.
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	contents, err := os.ReadFile(h.config.IndexFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		h.logger.Warnf("Index page %s does not exist", h.config.IndexFile)
		http.Error(w, "not found", http.StatusNotFound)
		return
	case err != nil:
		h.logger.Errorf("Reading index page: %v", err)
		http.Error(w, "unable to read index page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(contents)
}
