package domain

import (
	"sort"
	"time"
)

// Collection is the full in-memory state owned by the data holder.
type Collection struct {
	// Bks maps URL -> bookmark metadata.
	Bks map[string]*Bk `json:"bks"`

	// Tags is the registry of every tag ever attached. Entries are never
	// removed, even when no bookmark references them anymore.
	Tags map[string]*BkTag `json:"tags"`

	// EtagVersion is the last cloud revision this collection has seen.
	// Assigned by the cloud side only.
	EtagVersion int64 `json:"etagVersion"`

	// LastUpdateTime is the time of the latest successful persistence.
	LastUpdateTime time.Time `json:"lastUpdateTime"`
}

func NewCollection() *Collection {
	return &Collection{
		Bks:  make(map[string]*Bk),
		Tags: make(map[string]*BkTag),
	}
}

// Normalize replaces nil maps so a decoded or zero collection is usable.
func (c *Collection) Normalize() *Collection {
	if c.Bks == nil {
		c.Bks = make(map[string]*Bk)
	}
	if c.Tags == nil {
		c.Tags = make(map[string]*BkTag)
	}
	return c
}

// EnsureTag creates the registry entry for tag if missing and reports
// whether it was created.
func (c *Collection) EnsureTag(tag string) bool {
	if _, ok := c.Tags[tag]; ok {
		return false
	}
	c.Tags[tag] = &BkTag{Tag: tag, Aliases: []string{}}
	return true
}

// ByURLHash builds the urlHash -> bookmark lookup. O(n) on every call.
func (c *Collection) ByURLHash() map[string]*Bk {
	idx := make(map[string]*Bk, len(c.Bks))
	for _, bk := range c.Bks {
		idx[bk.URLHash] = bk
	}
	return idx
}

// TagNames returns the registry keys in sorted order.
func (c *Collection) TagNames() []string {
	names := make([]string, 0, len(c.Tags))
	for name := range c.Tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy safe to hand to another goroutine.
func (c *Collection) Clone() *Collection {
	if c == nil {
		return nil
	}
	out := &Collection{
		Bks:            make(map[string]*Bk, len(c.Bks)),
		Tags:           make(map[string]*BkTag, len(c.Tags)),
		EtagVersion:    c.EtagVersion,
		LastUpdateTime: c.LastUpdateTime,
	}
	for url, bk := range c.Bks {
		out.Bks[url] = bk.Clone()
	}
	for name, tag := range c.Tags {
		out.Tags[name] = tag.Clone()
	}
	return out
}
