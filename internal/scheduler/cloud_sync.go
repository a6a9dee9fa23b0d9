package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/bkmeta/internal/cloud"
	"github.com/MrSnakeDoc/bkmeta/internal/domain"
	"github.com/MrSnakeDoc/bkmeta/internal/logger"
)

// CloudService is the part of the bookmark service the syncer drives.
type CloudService interface {
	GetEtagVersion() int64
	ExportCloudCollection() domain.CloudCollection
	LoadCloudCollection(ctx context.Context, cc domain.CloudCollection) (int, error)
	SetEtagVersion(ctx context.Context, v int64) error
}

// DefaultCloudSyncInterval is used when no interval is configured
const DefaultCloudSyncInterval = 15 * time.Minute

// SyncResult describes what one Sync pass did.
type SyncResult string

const (
	SyncPulled   SyncResult = "pulled"
	SyncPushed   SyncResult = "pushed"
	SyncUpToDate SyncResult = "up-to-date"
	SyncConflict SyncResult = "conflict"
)

// CloudSyncer keeps the local collection and a remote snapshot aligned.
// A newer remote etag is pulled (cloud wins); otherwise local changes
// are uploaded.
type CloudSyncer struct {
	remote        cloud.Remote
	service       CloudService
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}
	started       atomic.Bool
	done          chan struct{}
	mu            sync.Mutex
}

func NewCloudSyncer(
	remote cloud.Remote,
	service CloudService,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *CloudSyncer {
	if manualTrigger == nil {
		manualTrigger = make(chan struct{}, 1)
	}
	if interval <= 0 {
		interval = DefaultCloudSyncInterval
	}
	return &CloudSyncer{
		remote:        remote,
		service:       service,
		logger:        log.With(logger.String("component", "cloud-sync")),
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
		done:          make(chan struct{}),
	}
}

// Start runs a first pass, then syncs on tick or trigger. A failing first
// pass is logged, not fatal: the remote may simply be offline.
func (cs *CloudSyncer) Start(ctx context.Context) error {
	if _, err := cs.Sync(ctx); err != nil {
		cs.logger.Warn("initial cloud sync failed", logger.Error(err))
	}

	ticker := time.NewTicker(cs.interval)
	cs.started.Store(true)
	go func() {
		defer close(cs.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cs.syncLogged(ctx)
			case <-cs.manualTrigger:
				cs.logger.Info("manual cloud sync triggered")
				cs.syncLogged(ctx)
			case <-cs.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Trigger asks for a sync without blocking.
func (cs *CloudSyncer) Trigger() bool {
	select {
	case cs.manualTrigger <- struct{}{}:
		return true
	default:
		return false
	}
}

func (cs *CloudSyncer) Stop() {
	cs.stopOnce.Do(func() { close(cs.stopCh) })
	if cs.started.Load() {
		<-cs.done
	}
}

func (cs *CloudSyncer) syncLogged(ctx context.Context) {
	if _, err := cs.Sync(ctx); err != nil {
		cs.logger.Error("cloud sync failed", logger.Error(err))
	}
}

// Sync performs one pull-or-push pass. An etag conflict is not an error:
// the next pass pulls the newer snapshot.
func (cs *CloudSyncer) Sync(ctx context.Context) (SyncResult, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	remote, err := cs.remote.Fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch remote snapshot: %w", err)
	}

	local := cs.service.GetEtagVersion()
	if remote != nil && remote.EtagVersion > local {
		matched, err := cs.service.LoadCloudCollection(ctx, *remote)
		if err != nil {
			return "", fmt.Errorf("failed to load remote snapshot: %w", err)
		}
		cs.logger.Info("pulled remote snapshot",
			logger.Int64("local_etag", local),
			logger.Int64("remote_etag", remote.EtagVersion),
			logger.Int("matched", matched))
		return SyncPulled, nil
	}

	export := cs.service.ExportCloudCollection()
	var expected int64
	if remote != nil {
		expected = remote.EtagVersion
		if export.SameContent(*remote) {
			cs.logger.Debug("cloud snapshot up to date",
				logger.Int64("etag", expected))
			return SyncUpToDate, nil
		}
	} else if len(export.Bks) == 0 {
		return SyncUpToDate, nil
	}

	etag, err := cs.remote.Upload(ctx, export, expected)
	if errors.Is(err, cloud.ErrEtagConflict) {
		cs.logger.Warn("remote changed during upload, retrying next round",
			logger.Error(err))
		return SyncConflict, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}

	if err := cs.service.SetEtagVersion(ctx, etag); err != nil {
		return "", fmt.Errorf("failed to record etag %d: %w", etag, err)
	}
	cs.logger.Info("pushed local snapshot",
		logger.Int("bookmarks", len(export.Bks)),
		logger.Int64("etag", etag))
	return SyncPushed, nil
}
