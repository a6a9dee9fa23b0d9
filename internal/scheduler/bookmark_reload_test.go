package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/bkmeta/internal/domain"
	"github.com/MrSnakeDoc/bkmeta/internal/logger"
)

type recordingAppender struct {
	mu    sync.Mutex
	calls [][]domain.BookmarkNode
}

func (a *recordingAppender) AppendBookmarks(_ context.Context, nodes []domain.BookmarkNode) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, nodes)
	return nil
}

func (a *recordingAppender) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

func (a *recordingAppender) last() []domain.BookmarkNode {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.calls) == 0 {
		return nil
	}
	return a.calls[len(a.calls)-1]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

const treeYAML = `---
- title: Toolbar
  children:
    - title: Go
      url: https://go.dev/
    - title: Example
      url: https://example.com/
`

func writeBookmarkFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "bookmarks.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write bookmark file: %v", err)
	}
	return path
}

func TestBookmarkReloader_Reload(t *testing.T) {
	path := writeBookmarkFile(t, t.TempDir(), treeYAML)
	app := &recordingAppender{}
	br := NewBookmarkReloader(path, app, logger.NewNop(), time.Hour, false, nil)

	if err := br.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	got := app.last()
	if len(got) != 2 || got[0].URL != "https://go.dev/" || got[1].URL != "https://example.com/" {
		t.Errorf("appended = %+v", got)
	}
}

func TestBookmarkReloader_StartFailsOnMissingFile(t *testing.T) {
	br := NewBookmarkReloader(filepath.Join(t.TempDir(), "nope.yaml"),
		&recordingAppender{}, logger.NewNop(), time.Hour, false, nil)

	if err := br.Start(context.Background()); err == nil {
		t.Fatal("Start() should fail when the file is missing")
	}
	br.Stop()
}

func TestBookmarkReloader_ManualTrigger(t *testing.T) {
	path := writeBookmarkFile(t, t.TempDir(), treeYAML)
	app := &recordingAppender{}
	trigger := make(chan struct{}, 1)
	br := NewBookmarkReloader(path, app, logger.NewNop(), time.Hour, false, trigger)

	if err := br.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer br.Stop()

	if app.count() != 1 {
		t.Fatalf("initial loads = %d, want 1", app.count())
	}
	trigger <- struct{}{}
	waitFor(t, "triggered reload", func() bool { return app.count() == 2 })
}

func TestBookmarkReloader_TriggerCollapses(t *testing.T) {
	br := NewBookmarkReloader("unused.yaml", &recordingAppender{}, logger.NewNop(), time.Hour, false, nil)

	if !br.Trigger() {
		t.Fatal("first Trigger() should be accepted")
	}
	if br.Trigger() {
		t.Error("second Trigger() should be dropped while one is pending")
	}
}

func TestBookmarkReloader_WatchesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeBookmarkFile(t, dir, treeYAML)
	app := &recordingAppender{}
	br := NewBookmarkReloader(path, app, logger.NewNop(), time.Hour, true, nil)

	if err := br.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer br.Stop()

	writeBookmarkFile(t, dir, treeYAML+"- title: New\n  url: https://new.example/\n")
	waitFor(t, "reload after file change", func() bool { return len(app.last()) == 3 })
}
