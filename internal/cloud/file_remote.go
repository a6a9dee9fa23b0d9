package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/MrSnakeDoc/bkmeta/internal/clock"
	"github.com/MrSnakeDoc/bkmeta/internal/domain"
)

// FileRemote keeps the snapshot in a JSON file, typically inside a
// folder synced by a drive client. The etag check only holds within one
// process.
type FileRemote struct {
	path  string
	clock clock.Clock
	mu    sync.Mutex
}

func NewFileRemote(path string, clk clock.Clock) *FileRemote {
	if clk == nil {
		clk = clock.System{}
	}
	return &FileRemote{path: path, clock: clk}
}

func (r *FileRemote) Fetch(_ context.Context) (*domain.CloudCollection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read()
}

func (r *FileRemote) read() (*domain.CloudCollection, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cloud snapshot: %w", err)
	}
	var cc domain.CloudCollection
	if err := json.Unmarshal(data, &cc); err != nil {
		return nil, fmt.Errorf("failed to parse cloud snapshot: %w", err)
	}
	if cc.Bks == nil {
		cc.Bks = make(map[string]domain.CloudBk)
	}
	return &cc, nil
}

func (r *FileRemote) Upload(_ context.Context, snapshot domain.CloudCollection, expected int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.read()
	if err != nil {
		return 0, err
	}
	var have int64
	if current != nil {
		have = current.EtagVersion
	}
	if have != expected {
		return 0, fmt.Errorf("%w: expected %d, found %d", ErrEtagConflict, expected, have)
	}

	snapshot.EtagVersion = expected + 1
	snapshot.LastUpdateTime = r.clock.Now()
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to marshal cloud snapshot: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create cloud dir: %w", err)
		}
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write cloud snapshot: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return 0, fmt.Errorf("failed to replace cloud snapshot: %w", err)
	}
	return snapshot.EtagVersion, nil
}

func (r *FileRemote) Close() error { return nil }
