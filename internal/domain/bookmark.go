package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Bk is the extension's private metadata about one browser bookmark.
//
// A Bk is uniquely identified by its URL. URLHash is derived from the URL
// when the entry is created and is the join key used across the cloud
// sync boundary, where raw URLs never travel.
type Bk struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// URL is the stable identifier reported by the bookmark source.
	URL string `json:"url"`

	// URLHash is HashURL(URL). Never recomputed after creation.
	URLHash string `json:"urlHash"`

	// Title is display only, refreshed on re-append.
	Title string `json:"title,omitempty"`

	// ─────────────────────────────
	// User metadata
	// ─────────────────────────────

	// Tags keeps insertion order. May be nil.
	Tags []string `json:"tags,omitempty"`

	// FavIconURL is empty when unknown.
	FavIconURL string `json:"favIconUrl,omitempty"`

	// ─────────────────────────────
	// Usage
	// ─────────────────────────────

	ClickedCount  int64      `json:"clickedCount"`
	LastClickTime *time.Time `json:"lastClickTime,omitempty"`
}

// BkTag is an entry of the collection's tag registry.
type BkTag struct {
	Tag string `json:"tag"`
	// Aliases are alternate display strings. Preserved, unused by merge.
	Aliases []string `json:"aliases"`
}

// NewBk builds a fresh entry for url with no tags and no clicks.
func NewBk(url, title string) *Bk {
	return &Bk{
		URL:     url,
		URLHash: HashURL(url),
		Title:   title,
	}
}

// HashURL returns the lowercase hex SHA-256 of the URL string.
func HashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// HasTag reports an exact (case-sensitive) match.
func (b *Bk) HasTag(tag string) bool {
	for _, t := range b.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// RemoveTag drops the first exact occurrence of tag and reports whether
// anything was removed.
func (b *Bk) RemoveTag(tag string) bool {
	for i, t := range b.Tags {
		if t == tag {
			b.Tags = append(b.Tags[:i:i], b.Tags[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (b *Bk) Clone() *Bk {
	if b == nil {
		return nil
	}
	c := *b
	if b.Tags != nil {
		c.Tags = append([]string(nil), b.Tags...)
	}
	if b.LastClickTime != nil {
		t := *b.LastClickTime
		c.LastClickTime = &t
	}
	return &c
}

func (t *BkTag) Clone() *BkTag {
	if t == nil {
		return nil
	}
	return &BkTag{
		Tag:     t.Tag,
		Aliases: append([]string{}, t.Aliases...),
	}
}
