package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MrSnakeDoc/bkmeta/internal/domain"
	"github.com/MrSnakeDoc/bkmeta/internal/logger"
	"github.com/MrSnakeDoc/bkmeta/internal/sources/bookmarks"
)

// DefaultReloadInterval is used when no interval is configured
const DefaultReloadInterval = time.Hour

// BookmarkAppender receives the flattened bookmark tree.
type BookmarkAppender interface {
	AppendBookmarks(ctx context.Context, nodes []domain.BookmarkNode) error
}

// BookmarkReloader handles periodic reloading of the bookmark tree file
type BookmarkReloader struct {
	loader        *bookmarks.Loader
	appender      BookmarkAppender
	logger        logger.Logger
	interval      time.Duration
	watch         bool
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}
	started       atomic.Bool
	done          chan struct{}
}

// NewBookmarkReloader creates a new bookmark reloader. When watch is true
// edits to the file trigger a reload through manualTrigger.
func NewBookmarkReloader(
	bookmarkFile string,
	appender BookmarkAppender,
	log logger.Logger,
	interval time.Duration,
	watch bool,
	manualTrigger chan struct{},
) *BookmarkReloader {
	if manualTrigger == nil {
		manualTrigger = make(chan struct{}, 1)
	}
	if interval <= 0 {
		interval = DefaultReloadInterval
	}
	return &BookmarkReloader{
		loader:        bookmarks.NewLoader(bookmarkFile),
		appender:      appender,
		logger:        log.With(logger.String("component", "bookmark-reloader")),
		interval:      interval,
		watch:         watch,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
		done:          make(chan struct{}),
	}
}

// Start loads the tree once, then keeps reloading on tick, trigger or
// file change.
func (br *BookmarkReloader) Start(ctx context.Context) error {
	// Load immediately on start
	if err := br.Reload(ctx); err != nil {
		return fmt.Errorf("initial bookmark reload failed: %w", err)
	}

	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	var watcher *fsnotify.Watcher
	if br.watch {
		w, err := br.newWatcher()
		if err != nil {
			br.logger.Warn("file watch disabled", logger.Error(err))
		} else {
			watcher = w
			events = w.Events
			watchErrs = w.Errors
		}
	}

	ticker := time.NewTicker(br.interval)
	br.started.Store(true)
	go func() {
		defer close(br.done)
		defer ticker.Stop()
		if watcher != nil {
			defer watcher.Close()
		}
		for {
			select {
			case <-ticker.C:
				br.reloadLogged(ctx)
			case <-br.manualTrigger:
				br.logger.Info("manual bookmark reload triggered")
				br.reloadLogged(ctx)
			case ev, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				if br.relevant(ev) {
					br.logger.Debug("bookmark file changed",
						logger.String("op", ev.Op.String()))
					br.Trigger()
				}
			case err, ok := <-watchErrs:
				if !ok {
					watchErrs = nil
					continue
				}
				br.logger.Warn("file watcher error", logger.Error(err))
			case <-br.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// newWatcher watches the parent directory so editors that replace the
// file by rename are still seen.
func (br *BookmarkReloader) newWatcher() (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(br.loader.Path())); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

func (br *BookmarkReloader) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != filepath.Clean(br.loader.Path()) {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

// Trigger asks for a reload without blocking. Bursts collapse into one.
func (br *BookmarkReloader) Trigger() bool {
	select {
	case br.manualTrigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Stop stops the reloader and waits for the loop to exit
func (br *BookmarkReloader) Stop() {
	br.stopOnce.Do(func() { close(br.stopCh) })
	if br.started.Load() {
		<-br.done
	}
}

func (br *BookmarkReloader) reloadLogged(ctx context.Context) {
	if err := br.Reload(ctx); err != nil {
		br.logger.Error("failed to reload bookmarks", logger.Error(err))
	}
}

// Reload parses the tree and appends every bookmark it carries
func (br *BookmarkReloader) Reload(ctx context.Context) error {
	nodes, err := br.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load bookmarks: %w", err)
	}

	flat := bookmarks.Flatten(nodes)
	br.logger.Info("loaded bookmark tree",
		logger.String("file", br.loader.Path()),
		logger.Int("count", len(flat)))

	if err := br.appender.AppendBookmarks(ctx, flat); err != nil {
		return fmt.Errorf("failed to append bookmarks: %w", err)
	}
	return nil
}
