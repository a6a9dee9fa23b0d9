package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/bkmeta/internal/httpserver/deps"
)

type tagRequest struct {
	URL string `json:"url"`
	Tag string `json:"tag"`
}

type tagsRequest struct {
	URL  string   `json:"url"`
	Tags []string `json:"tags"`
}

type addTagResponse struct {
	Added bool `json:"added"`
}

type tagsResponse struct {
	Tags []string `json:"tags"`
}

// AddTag answers {"added": false} for blank tags, unknown urls and
// duplicates. Those are not errors.
func AddTag(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tagRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		added, err := d.Bookmarks.AddTag(r.Context(), req.URL, req.Tag)
		if err != nil {
			writeError(w, d.Logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, addTagResponse{Added: added})
	}
}

func RemoveTag(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tagRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := d.Bookmarks.RemoveTag(r.Context(), req.URL, req.Tag); err != nil {
			writeError(w, d.Logger, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func UpdateTags(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tagsRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := d.Bookmarks.UpdateTags(r.Context(), req.URL, req.Tags); err != nil {
			writeError(w, d.Logger, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListTags returns the tag registry, sorted.
func ListTags(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags := d.Bookmarks.Tags()
		if tags == nil {
			tags = []string{}
		}
		writeJSON(w, http.StatusOK, tagsResponse{Tags: tags})
	}
}
