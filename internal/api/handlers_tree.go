package api

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strconv"

	"github.com/dgallion1/docgraph/internal/treefile"
)

// handleTree serves the persisted tree verbatim. The ETag is the content
// hash, so viewers can poll cheaply.
func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(s.builder.OutputPath())
	if errors.Is(err, fs.ErrNotExist) {
		jsonError(w, "tree not built yet", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("read tree", "error", err)
		jsonError(w, "failed to read tree", http.StatusInternalServerError)
		return
	}

	etag := strconv.Quote(treefile.ContentHashHex(data))
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
