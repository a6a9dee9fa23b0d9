// Package holder owns the live collection, its mutation queue and the
// persistence backend behind it.
package holder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrSnakeDoc/bkmeta/internal/clock"
	"github.com/MrSnakeDoc/bkmeta/internal/collection"
	"github.com/MrSnakeDoc/bkmeta/internal/domain"
	"github.com/MrSnakeDoc/bkmeta/internal/logger"
	"github.com/MrSnakeDoc/bkmeta/internal/queue"
	"github.com/MrSnakeDoc/bkmeta/internal/store"
)

var ErrNotStarted = errors.New("data holder not started")

// Holder is the explicitly constructed data holder. Every write goes
// through its queue; reads go straight to the store.
type Holder struct {
	backend store.Backend
	store   *collection.Store
	queue   *queue.Queue
	logger  logger.Logger

	mu      sync.Mutex
	started bool
}

func New(backend store.Backend, clk clock.Clock, log logger.Logger, opts queue.Options) *Holder {
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With(logger.String("component", "holder"))

	s := collection.NewStore(nil)
	return &Holder{
		backend: backend,
		store:   s,
		queue:   queue.New(s, backend, clk, log, opts),
		logger:  log,
	}
}

// Start loads the persisted collection (empty when nothing was saved)
// and starts the queue. Calling it twice is a no-op.
func (h *Holder) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return nil
	}

	c, err := h.load(ctx)
	if err != nil {
		return err
	}
	h.logger.Info("data holder started",
		logger.Int("bookmarks", len(c.Bks)),
		logger.Int("tags", len(c.Tags)),
		logger.Int64("etag_version", c.EtagVersion))

	h.store.Replace(c)
	h.queue.Start()
	h.started = true
	return nil
}

func (h *Holder) load(ctx context.Context) (*domain.Collection, error) {
	if h.backend == nil {
		return domain.NewCollection(), nil
	}
	c, err := h.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}
	if c == nil {
		h.logger.Info("no persisted collection, starting empty")
		return domain.NewCollection(), nil
	}
	return c.Normalize(), nil
}

// Started reports whether Start succeeded.
func (h *Holder) Started() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started
}

// Stop stops the queue. Pending mutations fail with queue.ErrClosed.
func (h *Holder) Stop() {
	h.queue.Stop()
}

// Store returns the live collection for reads.
func (h *Holder) Store() *collection.Store { return h.store }

func (h *Holder) QueueDepth() int { return h.queue.Depth() }

func (h *Holder) Enqueue(ctx context.Context, m queue.Mutation) (queue.Future, error) {
	return h.queue.Enqueue(ctx, m)
}

func (h *Holder) Push(ctx context.Context, m queue.Mutation) error {
	return h.queue.Push(ctx, m)
}

func (h *Holder) SaveNow(ctx context.Context) error {
	return h.queue.SaveNow(ctx)
}

// AppendBookmarks inserts entries for unknown URLs and refreshes the title
// of known ones. Tags, clicks and favicons of existing entries are kept.
func (h *Holder) AppendBookmarks(ctx context.Context, nodes []domain.BookmarkNode) error {
	if len(nodes) == 0 {
		return nil
	}
	return h.Push(ctx, func(c *domain.Collection) {
		added, refreshed := 0, 0
		for _, n := range nodes {
			if n.URL == "" {
				continue
			}
			if bk, ok := c.Bks[n.URL]; ok {
				if n.Title != "" && bk.Title != n.Title {
					bk.Title = n.Title
					refreshed++
				}
				continue
			}
			c.Bks[n.URL] = domain.NewBk(n.URL, n.Title)
			added++
		}
		if added > 0 || refreshed > 0 {
			h.logger.Info("bookmarks appended",
				logger.Int("added", added),
				logger.Int("refreshed", refreshed))
		}
	})
}

// SetEtagVersion records the cloud revision the collection has seen.
func (h *Holder) SetEtagVersion(ctx context.Context, v int64) error {
	return h.Push(ctx, func(c *domain.Collection) {
		c.EtagVersion = v
	})
}

// Restore reloads the last persisted state (or an empty collection) and
// swaps it in after every mutation queued before the call.
func (h *Holder) Restore(ctx context.Context) error {
	if !h.Started() {
		return ErrNotStarted
	}
	loaded, err := h.load(ctx)
	if err != nil {
		return err
	}
	count, etag := len(loaded.Bks), loaded.EtagVersion

	err = h.Push(ctx, func(c *domain.Collection) {
		*c = *loaded
	})
	if err != nil {
		return err
	}
	h.logger.Info("collection restored",
		logger.Int("bookmarks", count),
		logger.Int64("etag_version", etag))
	return nil
}
