package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/bkmeta/internal/logger"
)

// DefaultGCInterval is how often storage compaction runs when not configured
const DefaultGCInterval = time.Hour

// Compactor is a persistence backend that needs periodic space reclaim.
type Compactor interface {
	Compact(ctx context.Context) (int, error)
}

// GarbageCollector periodically compacts the persistence backend
type GarbageCollector struct {
	compactor Compactor
	logger    logger.Logger
	interval  time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
	started   atomic.Bool
	done      chan struct{}
}

// NewGarbageCollector creates a new garbage collector
func NewGarbageCollector(
	compactor Compactor,
	log logger.Logger,
	interval time.Duration,
) *GarbageCollector {
	if interval <= 0 {
		interval = DefaultGCInterval
	}

	return &GarbageCollector{
		compactor: compactor,
		logger:    log.With(logger.String("component", "gc")),
		interval:  interval,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start begins the periodic garbage collection process
func (gc *GarbageCollector) Start(ctx context.Context) error {
	ticker := time.NewTicker(gc.interval)
	gc.started.Store(true)
	go func() {
		defer close(gc.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := gc.Collect(ctx); err != nil {
					gc.logger.Error("garbage collection failed",
						logger.Error(err))
				}
			case <-gc.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the garbage collector
func (gc *GarbageCollector) Stop() {
	gc.stopOnce.Do(func() { close(gc.stopCh) })
	if gc.started.Load() {
		<-gc.done
	}
}

// Collect runs one compaction pass
func (gc *GarbageCollector) Collect(ctx context.Context) error {
	start := time.Now()
	rewritten, err := gc.compactor.Compact(ctx)
	if err != nil {
		return err
	}

	if rewritten > 0 {
		gc.logger.Info("storage compacted",
			logger.Int("files_rewritten", rewritten),
			logger.Duration("took", time.Since(start)))
	} else {
		gc.logger.Debug("nothing to compact")
	}
	return nil
}
