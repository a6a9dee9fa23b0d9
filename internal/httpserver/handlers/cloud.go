package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/bkmeta/internal/domain"
	"github.com/MrSnakeDoc/bkmeta/internal/httpserver/deps"
)

type cloudLoadResponse struct {
	Matched     int   `json:"matched"`
	EtagVersion int64 `json:"etagVersion"`
}

type etagResponse struct {
	EtagVersion int64 `json:"etagVersion"`
}

// ExportCloud returns the tagged bookmarks keyed by url hash.
func ExportCloud(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Bookmarks.ExportCloudCollection())
	}
}

// LoadCloud applies a downloaded snapshot. Cloud tags win on every match.
func LoadCloud(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cc domain.CloudCollection
		if !decodeJSON(w, r, &cc) {
			return
		}
		matched, err := d.Bookmarks.LoadCloudCollection(r.Context(), cc)
		if err != nil {
			writeError(w, d.Logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, cloudLoadResponse{
			Matched:     matched,
			EtagVersion: d.Bookmarks.GetEtagVersion(),
		})
	}
}

func EtagVersion(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, etagResponse{EtagVersion: d.Bookmarks.GetEtagVersion()})
	}
}
