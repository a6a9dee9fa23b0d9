package store

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/bkmeta/internal/domain"
)

// MemoryBackend keeps a private deep copy. State is lost on exit.
type MemoryBackend struct {
	mu       sync.Mutex
	snapshot *domain.Collection
	saves    int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) Load(_ context.Context) (*domain.Collection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot.Clone(), nil
}

func (b *MemoryBackend) Save(_ context.Context, c *domain.Collection) error {
	if c == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot = c.Clone()
	b.saves++
	return nil
}

// Saves returns how many times Save was called.
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

func (b *MemoryBackend) Close() error { return nil }
