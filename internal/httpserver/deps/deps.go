package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/bkmeta/internal/domain"
	"github.com/MrSnakeDoc/bkmeta/internal/logger"
)

// BookmarkService is what handlers need from bookmark.Service.
type BookmarkService interface {
	Get(url string) (*domain.Bk, bool)
	Search(query string, limit int) []domain.Match
	AddTag(ctx context.Context, url, tag string) (bool, error)
	RemoveTag(ctx context.Context, url, tag string) error
	UpdateTags(ctx context.Context, url string, tags []string) error
	UpdateFavIconURLs(ctx context.Context, icons map[string]string) error
	RegisterClick(ctx context.Context, url string, increment int64) error
	AppendBookmarks(ctx context.Context, nodes []domain.BookmarkNode) error
	Restore(ctx context.Context) error
	Tags() []string
	Count() int
	GetEtagVersion() int64
	LoadCloudCollection(ctx context.Context, cc domain.CloudCollection) (int, error)
	ExportCloudCollection() domain.CloudCollection
}

type Deps struct {
	Logger                logger.Logger
	StartTime             time.Time
	Version               string
	Commit                string
	BuildDate             string
	GoVersion             string
	AllowedHosts          []string        // Host headers allowed to access the server
	AllowedCIDRS          []string        // networks allowed to reach the API
	TrustProxy            bool            // true if running behind a trusted reverse proxy (e.g., cloudflared)
	Bookmarks             BookmarkService // bookmark metadata service
	Ready                 func() bool     // reports whether the data holder has started
	QueueDepth            func() int      // mutations waiting in the queue
	StorageScheme         string          // persistence backend scheme, reported by /readyz
	BookmarkReloadTrigger chan struct{}   // manual bookmark reload (nil if no bookmark file)
	CloudSyncTrigger      chan struct{}   // manual cloud sync (nil if cloud sync disabled)
	RateLimitBurst        int             // burst per client IP on mutating routes
	RateLimitPerMin       int             // refill per client IP per minute
}
