package collection

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/bkmeta/internal/domain"
)

// Store owns the in-memory Collection.
//
// Write ordering is NOT decided here: every writer must come through the
// mutation queue, which calls Apply from a single goroutine. The lock only
// keeps concurrent readers memory-safe while that goroutine writes.
type Store struct {
	mu sync.RWMutex
	c  *domain.Collection
}

// NewStore wraps c. A nil collection starts empty.
func NewStore(c *domain.Collection) *Store {
	if c == nil {
		c = domain.NewCollection()
	}
	return &Store{c: c.Normalize()}
}

// Apply runs fn against the live collection with exclusive access.
func (s *Store) Apply(fn func(c *domain.Collection)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.c)
}

// View runs fn against the live collection with shared access.
// fn must not keep references past its return.
func (s *Store) View(fn func(c *domain.Collection)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.c)
}

// Replace swaps the whole collection, used on restore.
func (s *Store) Replace(c *domain.Collection) {
	if c == nil {
		c = domain.NewCollection()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c = c.Normalize()
}

// Bookmark returns a copy of the entry for url.
func (s *Store) Bookmark(url string) (*domain.Bk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bk, ok := s.c.Bks[url]
	if !ok {
		return nil, false
	}
	return bk.Clone(), true
}

// Snapshot returns a deep copy of the whole collection.
func (s *Store) Snapshot() *domain.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.c.Clone()
}

// EtagVersion returns the last cloud revision seen.
func (s *Store) EtagVersion() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.c.EtagVersion
}

// LastUpdateTime returns the time of the last successful persistence.
func (s *Store) LastUpdateTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.c.LastUpdateTime
}

// Count returns the number of tracked bookmarks.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.c.Bks)
}

// TagNames returns the tag registry, sorted.
func (s *Store) TagNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.c.TagNames()
}
