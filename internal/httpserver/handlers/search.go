package handlers

import (
	"net/http"
	"strconv"

	"github.com/MrSnakeDoc/bkmeta/internal/domain"
	"github.com/MrSnakeDoc/bkmeta/internal/httpserver/deps"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

type searchResponse struct {
	Query   string         `json:"query"`
	Matches []domain.Match `json:"matches"`
}

// Search ranks bookmarks for ?q= (optional &limit=).
func Search(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing q parameter"})
			return
		}

		limit := defaultSearchLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
				return
			}
			limit = min(n, maxSearchLimit)
		}

		writeJSON(w, http.StatusOK, searchResponse{
			Query:   q,
			Matches: d.Bookmarks.Search(q, limit),
		})
	}
}
