package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/bkmeta/internal/domain"
	"github.com/MrSnakeDoc/bkmeta/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bkmeta/internal/sources/bookmarks"
)

type appendRequest struct {
	Nodes []domain.BookmarkNode `json:"nodes"`
}

type faviconsRequest struct {
	URLs map[string]string `json:"urls"`
}

type clickRequest struct {
	URL   string `json:"url"`
	Count *int64 `json:"count,omitempty"`
}

// GetBookmark returns the metadata stored for ?url=.
func GetBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url := r.URL.Query().Get("url")
		if url == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing url parameter"})
			return
		}
		bk, ok := d.Bookmarks.Get(url)
		if !ok {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "bookmark not found"})
			return
		}
		writeJSON(w, http.StatusOK, bk)
	}
}

// AppendBookmarks accepts a bookmark tree (or a flat list) and registers
// every node that carries a URL.
func AppendBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req appendRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := d.Bookmarks.AppendBookmarks(r.Context(), bookmarks.Flatten(req.Nodes)); err != nil {
			writeError(w, d.Logger, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func UpdateFavIcons(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req faviconsRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := d.Bookmarks.UpdateFavIconURLs(r.Context(), req.URLs); err != nil {
			writeError(w, d.Logger, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// RegisterClick counts one click unless the body says otherwise.
func RegisterClick(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req clickRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		count := int64(1)
		if req.Count != nil {
			count = *req.Count
		}
		if err := d.Bookmarks.RegisterClick(r.Context(), req.URL, count); err != nil {
			writeError(w, d.Logger, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Restore drops unsaved in-memory state and reloads from storage.
func Restore(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Bookmarks.Restore(r.Context()); err != nil {
			writeError(w, d.Logger, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
