// Package bookmark is the façade the API talks to. Every write is
// expressed as a mutation on the data holder's queue.
package bookmark

import (
	"context"
	"sort"
	"strings"

	"github.com/MrSnakeDoc/bkmeta/internal/clock"
	"github.com/MrSnakeDoc/bkmeta/internal/cloud"
	"github.com/MrSnakeDoc/bkmeta/internal/collection"
	"github.com/MrSnakeDoc/bkmeta/internal/domain"
	"github.com/MrSnakeDoc/bkmeta/internal/logger"
	"github.com/MrSnakeDoc/bkmeta/internal/queue"
)

// DataHolder is the subset of the data holder the service relies on.
type DataHolder interface {
	Start(ctx context.Context) error
	Restore(ctx context.Context) error
	Store() *collection.Store
	Enqueue(ctx context.Context, m queue.Mutation) (queue.Future, error)
	Push(ctx context.Context, m queue.Mutation) error
	SaveNow(ctx context.Context) error
	AppendBookmarks(ctx context.Context, nodes []domain.BookmarkNode) error
	SetEtagVersion(ctx context.Context, v int64) error
}

type Service struct {
	holder     DataHolder
	clock      clock.Clock
	logger     logger.Logger
	reconciler *cloud.Reconciler
}

func NewService(h DataHolder, clk clock.Clock, log logger.Logger) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		holder:     h,
		clock:      clk,
		logger:     log.With(logger.String("component", "bookmarks")),
		reconciler: cloud.NewReconciler(h, log),
	}
}

// Init loads the persisted collection and starts the queue.
func (s *Service) Init(ctx context.Context) error {
	return s.holder.Start(ctx)
}

// Restore resets the collection to its last persisted state.
func (s *Service) Restore(ctx context.Context) error {
	return s.holder.Restore(ctx)
}

// AddTag attaches tag to the bookmark at url. It reports false without
// mutating anything when the tag is blank, the url is unknown or the
// bookmark already carries the tag. On true the mutation was applied and
// a persistence attempt was made; err carries a persistence failure.
func (s *Service) AddTag(ctx context.Context, url, tag string) (bool, error) {
	key := strings.TrimSpace(tag)
	if key == "" {
		return false, nil
	}
	bk, ok := s.holder.Store().Bookmark(url)
	if !ok || bk.HasTag(key) {
		return false, nil
	}

	err := s.holder.Push(ctx, func(c *domain.Collection) {
		bk, ok := c.Bks[url]
		if !ok || bk.HasTag(key) {
			s.logger.Debug("tag add skipped",
				logger.String("url", url),
				logger.String("tag", key))
			return
		}
		if c.EnsureTag(key) {
			s.logger.Info("new tag registered", logger.String("tag", key))
		}
		bk.Tags = append(bk.Tags, key)
		s.logger.Info("tag added",
			logger.String("url", url),
			logger.String("tag", key))
	})
	return true, err
}

// RemoveTag drops the first exact occurrence of tag. The registry keeps
// the tag.
func (s *Service) RemoveTag(ctx context.Context, url, tag string) error {
	bk, ok := s.holder.Store().Bookmark(url)
	if !ok || !bk.HasTag(tag) {
		return nil
	}
	return s.holder.Push(ctx, func(c *domain.Collection) {
		bk, ok := c.Bks[url]
		if !ok {
			return
		}
		if bk.RemoveTag(tag) {
			s.logger.Info("tag removed",
				logger.String("url", url),
				logger.String("tag", tag))
		}
	})
}

// UpdateTags replaces the whole tag list as given (order and duplicates
// kept) and forces a persistence pass.
func (s *Service) UpdateTags(ctx context.Context, url string, tags []string) error {
	if _, ok := s.holder.Store().Bookmark(url); !ok {
		return nil
	}
	replacement := append([]string{}, tags...)

	err := s.holder.Push(ctx, func(c *domain.Collection) {
		bk, ok := c.Bks[url]
		if !ok {
			return
		}
		for _, tag := range replacement {
			c.EnsureTag(tag)
		}
		bk.Tags = replacement
		s.logger.Info("tags replaced",
			logger.String("url", url),
			logger.Strings("tags", replacement))
	})
	if err != nil {
		return err
	}
	return s.holder.SaveNow(ctx)
}

// UpdateFavIconURLs sets favicons for known bookmarks whose icon changed.
// All updates are queued before any is awaited, in URL order.
func (s *Service) UpdateFavIconURLs(ctx context.Context, icons map[string]string) error {
	urls := make([]string, 0, len(icons))
	for url := range icons {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	var futures []queue.Future
	for _, url := range urls {
		icon := icons[url]
		bk, ok := s.holder.Store().Bookmark(url)
		if !ok || bk.FavIconURL == icon {
			continue
		}
		f, err := s.holder.Enqueue(ctx, func(c *domain.Collection) {
			bk, ok := c.Bks[url]
			if !ok {
				return
			}
			bk.FavIconURL = icon
			s.logger.Info("favicon updated",
				logger.String("url", url),
				logger.String("favicon", icon))
		})
		if err != nil {
			return err
		}
		futures = append(futures, f)
	}

	var firstErr error
	for _, f := range futures {
		if err := f.Wait(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RegisterClick adds increment to the click counter and stamps the
// click time in one mutation. Negative increments are ignored.
func (s *Service) RegisterClick(ctx context.Context, url string, increment int64) error {
	if increment < 0 {
		s.logger.Debug("negative click increment ignored",
			logger.String("url", url),
			logger.Int64("increment", increment))
		return nil
	}
	if _, ok := s.holder.Store().Bookmark(url); !ok {
		return nil
	}
	return s.holder.Push(ctx, func(c *domain.Collection) {
		bk, ok := c.Bks[url]
		if !ok {
			return
		}
		now := s.clock.Now()
		bk.ClickedCount += increment
		bk.LastClickTime = &now
	})
}

// AppendBookmarks registers nodes reported by the bookmark source.
// Existing tags are never overwritten.
func (s *Service) AppendBookmarks(ctx context.Context, nodes []domain.BookmarkNode) error {
	return s.holder.AppendBookmarks(ctx, nodes)
}

// Get returns a copy of the bookmark at url.
func (s *Service) Get(url string) (*domain.Bk, bool) {
	return s.holder.Store().Bookmark(url)
}

func (s *Service) GetEtagVersion() int64 {
	return s.holder.Store().EtagVersion()
}

// SetEtagVersion records a revision assigned by the remote after an upload.
func (s *Service) SetEtagVersion(ctx context.Context, v int64) error {
	return s.holder.SetEtagVersion(ctx, v)
}

// Search ranks bookmarks against query by tags, title, host and clicks.
func (s *Service) Search(query string, limit int) []domain.Match {
	var bks []*domain.Bk
	s.holder.Store().View(func(c *domain.Collection) {
		bks = make([]*domain.Bk, 0, len(c.Bks))
		for _, bk := range c.Bks {
			bks = append(bks, bk.Clone())
		}
	})
	return domain.Rank(query, bks, limit)
}

// Tags lists the registry, sorted.
func (s *Service) Tags() []string {
	return s.holder.Store().TagNames()
}

// Count returns the number of tracked bookmarks.
func (s *Service) Count() int {
	return s.holder.Store().Count()
}

// LoadCloudCollection applies a cloud snapshot, see cloud.Reconciler.Load.
func (s *Service) LoadCloudCollection(ctx context.Context, cc domain.CloudCollection) (int, error) {
	return s.reconciler.Load(ctx, cc)
}

// ExportCloudCollection returns the local view for upload.
func (s *Service) ExportCloudCollection() domain.CloudCollection {
	return s.reconciler.Export()
}
