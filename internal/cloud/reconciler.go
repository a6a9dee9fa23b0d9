// Package cloud reconciles the local collection with a remote snapshot
// keyed by urlHash.
package cloud

import (
	"context"
	"errors"
	"sort"

	"github.com/MrSnakeDoc/bkmeta/internal/collection"
	"github.com/MrSnakeDoc/bkmeta/internal/domain"
	"github.com/MrSnakeDoc/bkmeta/internal/logger"
	"github.com/MrSnakeDoc/bkmeta/internal/queue"
)

// Holder is what the reconciler needs from the data holder.
type Holder interface {
	Store() *collection.Store
	Enqueue(ctx context.Context, m queue.Mutation) (queue.Future, error)
	SetEtagVersion(ctx context.Context, v int64) error
}

type Reconciler struct {
	holder Holder
	logger logger.Logger
}

func NewReconciler(h Holder, log logger.Logger) *Reconciler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Reconciler{
		holder: h,
		logger: log.With(logger.String("component", "cloud")),
	}
}

type match struct {
	hash string
	url  string
	tags []string
}

// Load replaces the tags of every local bookmark whose urlHash appears in
// cc. The cloud always wins; unknown hashes are dropped. The etag version
// is recorded afterwards even when nothing matched. It returns how many
// entries matched.
func (r *Reconciler) Load(ctx context.Context, cc domain.CloudCollection) (int, error) {
	var matches []match
	r.holder.Store().View(func(c *domain.Collection) {
		byHash := c.ByURLHash()
		for hash, cbk := range cc.Bks {
			if local, ok := byHash[hash]; ok {
				matches = append(matches, match{
					hash: hash,
					url:  local.URL,
					tags: append([]string(nil), cbk.Tags...),
				})
			}
		}
	})
	sort.Slice(matches, func(i, j int) bool { return matches[i].hash < matches[j].hash })

	futures := make([]queue.Future, 0, len(matches))
	for _, m := range matches {
		f, err := r.holder.Enqueue(ctx, func(c *domain.Collection) {
			bk, ok := c.Bks[m.url]
			if !ok {
				return
			}
			for _, tag := range m.tags {
				c.EnsureTag(tag)
			}
			bk.Tags = m.tags
			r.logger.Info("cloud tags applied",
				logger.String("url", m.url),
				logger.Strings("tags", m.tags))
		})
		if err != nil {
			return 0, err
		}
		futures = append(futures, f)
	}

	for _, f := range futures {
		if err := f.Wait(ctx); err != nil && !errors.Is(err, queue.ErrPersist) {
			return len(matches), err
		}
	}

	if err := r.holder.SetEtagVersion(ctx, cc.EtagVersion); err != nil {
		return len(matches), err
	}

	r.logger.Info("cloud collection loaded",
		logger.Int("remote", len(cc.Bks)),
		logger.Int("matched", len(matches)),
		logger.Int64("etag_version", cc.EtagVersion))
	return len(matches), nil
}

// Export projects the current local state for upload.
func (r *Reconciler) Export() domain.CloudCollection {
	var cc domain.CloudCollection
	r.holder.Store().View(func(c *domain.Collection) {
		cc = Project(c)
	})
	return cc
}

// Project keeps tagged bookmarks only and strips everything but the tags.
func Project(c *domain.Collection) domain.CloudCollection {
	cc := domain.CloudCollection{
		Bks:            make(map[string]domain.CloudBk),
		EtagVersion:    c.EtagVersion,
		LastUpdateTime: c.LastUpdateTime,
	}
	for _, bk := range c.Bks {
		if len(bk.Tags) == 0 {
			continue
		}
		cc.Bks[bk.URLHash] = domain.CloudBk{Tags: append([]string(nil), bk.Tags...)}
	}
	return cc
}
