package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/bkmeta/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bkmeta/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/bkmeta/internal/httpserver/mw"
)

func init() { Register(registerAPI) }

// registerAPI mounts the bookmark API. Every route is guarded by network
// and Host checks; writes are also rate limited per client IP.
func registerAPI(r chi.Router, d deps.Deps) {
	limit := mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.RateLimitBurst,
		RefillPerIPPerMin: d.RateLimitPerMin,
		MaxEntries:        4096,
		TrustProxy:        d.TrustProxy,
		Logger:            d.Logger,
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
		r.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))

		r.Get("/bookmarks", handlers.GetBookmark(d))
		r.Get("/bookmarks/search", handlers.Search(d))
		r.Get("/tags", handlers.ListTags(d))
		r.Get("/cloud", handlers.ExportCloud(d))
		r.Get("/etag", handlers.EtagVersion(d))

		r.Group(func(r chi.Router) {
			r.Use(limit)

			r.Post("/bookmarks", handlers.AppendBookmarks(d))
			r.Post("/bookmarks/tags", handlers.AddTag(d))
			r.Delete("/bookmarks/tags", handlers.RemoveTag(d))
			r.Put("/bookmarks/tags", handlers.UpdateTags(d))
			r.Post("/bookmarks/favicons", handlers.UpdateFavIcons(d))
			r.Post("/bookmarks/clicks", handlers.RegisterClick(d))
			r.Post("/cloud", handlers.LoadCloud(d))
			r.Post("/restore", handlers.Restore(d))
		})
	})
}
