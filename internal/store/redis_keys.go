package store

const (
	// KeyPrefixBookmark is the prefix for bookmark keys, followed by the urlHash
	KeyPrefixBookmark = "bkmeta:bk:"
	// KeyAllBookmarks is the set of all persisted urlHashes
	KeyAllBookmarks = "bkmeta:bks:all"
	// KeyTags is the hash tag-name -> BkTag JSON
	KeyTags = "bkmeta:tags"
	// KeyMeta is the hash holding etag_version and last_update_time
	KeyMeta = "bkmeta:meta"
)

// BookmarkKey returns the Redis key for a bookmark
func BookmarkKey(urlHash string) string {
	return KeyPrefixBookmark + urlHash
}
