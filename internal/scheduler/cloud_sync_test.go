package scheduler

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/MrSnakeDoc/bkmeta/internal/bookmark"
	"github.com/MrSnakeDoc/bkmeta/internal/cloud"
	"github.com/MrSnakeDoc/bkmeta/internal/domain"
	"github.com/MrSnakeDoc/bkmeta/internal/holder"
	"github.com/MrSnakeDoc/bkmeta/internal/logger"
	"github.com/MrSnakeDoc/bkmeta/internal/queue"
	"github.com/MrSnakeDoc/bkmeta/internal/store"
)

func newSyncService(t *testing.T) *bookmark.Service {
	t.Helper()
	ctx := context.Background()
	h := holder.New(store.NewMemoryBackend(), nil, logger.NewNop(), queue.Options{})
	svc := bookmark.NewService(h, nil, logger.NewNop())
	if err := svc.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(h.Stop)
	if err := svc.AppendBookmarks(ctx, []domain.BookmarkNode{{URL: "https://go.dev/"}}); err != nil {
		t.Fatalf("AppendBookmarks() error = %v", err)
	}
	return svc
}

// staleRemote always reports a conflict on upload.
type staleRemote struct {
	cloud.Remote
}

func (staleRemote) Upload(context.Context, domain.CloudCollection, int64) (int64, error) {
	return 0, cloud.ErrEtagConflict
}

func TestCloudSyncer_PushThenPull(t *testing.T) {
	ctx := context.Background()
	remote := cloud.NewFileRemote(filepath.Join(t.TempDir(), "cloud.json"), nil)

	// first device pushes its tags
	a := newSyncService(t)
	if _, err := a.AddTag(ctx, "https://go.dev/", "lang"); err != nil {
		t.Fatalf("AddTag() error = %v", err)
	}
	syncA := NewCloudSyncer(remote, a, logger.NewNop(), 0, nil)

	res, err := syncA.Sync(ctx)
	if err != nil || res != SyncPushed {
		t.Fatalf("Sync() = %q, %v; want pushed", res, err)
	}
	if a.GetEtagVersion() != 1 {
		t.Errorf("etag after push = %d, want 1", a.GetEtagVersion())
	}

	res, err = syncA.Sync(ctx)
	if err != nil || res != SyncUpToDate {
		t.Errorf("second Sync() = %q, %v; want up-to-date", res, err)
	}

	// second device pulls them
	b := newSyncService(t)
	syncB := NewCloudSyncer(remote, b, logger.NewNop(), 0, nil)
	res, err = syncB.Sync(ctx)
	if err != nil || res != SyncPulled {
		t.Fatalf("Sync() = %q, %v; want pulled", res, err)
	}
	bk, _ := b.Get("https://go.dev/")
	if len(bk.Tags) != 1 || bk.Tags[0] != "lang" {
		t.Errorf("pulled tags = %v, want [lang]", bk.Tags)
	}
	if b.GetEtagVersion() != 1 {
		t.Errorf("etag after pull = %d, want 1", b.GetEtagVersion())
	}
}

func TestCloudSyncer_NothingToPush(t *testing.T) {
	remote := cloud.NewFileRemote(filepath.Join(t.TempDir(), "cloud.json"), nil)
	svc := newSyncService(t)

	res, err := NewCloudSyncer(remote, svc, logger.NewNop(), 0, nil).Sync(context.Background())
	if err != nil || res != SyncUpToDate {
		t.Errorf("Sync() = %q, %v; want up-to-date", res, err)
	}
}

func TestCloudSyncer_Conflict(t *testing.T) {
	ctx := context.Background()
	base := cloud.NewFileRemote(filepath.Join(t.TempDir(), "cloud.json"), nil)
	svc := newSyncService(t)
	if _, err := svc.AddTag(ctx, "https://go.dev/", "lang"); err != nil {
		t.Fatalf("AddTag() error = %v", err)
	}

	res, err := NewCloudSyncer(staleRemote{base}, svc, logger.NewNop(), 0, nil).Sync(ctx)
	if err != nil || res != SyncConflict {
		t.Errorf("Sync() = %q, %v; want conflict", res, err)
	}
	if svc.GetEtagVersion() != 0 {
		t.Errorf("etag must not move on conflict, got %d", svc.GetEtagVersion())
	}
}
