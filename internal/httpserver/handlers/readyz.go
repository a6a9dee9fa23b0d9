package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/bkmeta/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready       bool   `json:"ready"`
	Bookmarks   int    `json:"bookmarks"`
	EtagVersion int64  `json:"etag_version"`
	QueueDepth  int    `json:"queue_depth"`
	Storage     string `json:"storage,omitempty"`
}

// Readyz answers 503 until the data holder has loaded the collection.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil && !d.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, readyzResponse{Storage: d.StorageScheme})
			return
		}
		depth := 0
		if d.QueueDepth != nil {
			depth = d.QueueDepth()
		}
		writeJSON(w, http.StatusOK, readyzResponse{
			Ready:       true,
			QueueDepth:  depth,
			Bookmarks:   d.Bookmarks.Count(),
			EtagVersion: d.Bookmarks.GetEtagVersion(),
			Storage:     d.StorageScheme,
		})
	}
}
