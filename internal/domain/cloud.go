package domain

import "time"

// CloudBk is the only per-bookmark data that crosses the sync boundary.
type CloudBk struct {
	Tags []string `json:"tags"`
}

// CloudCollection is the export/upload shape, keyed by urlHash.
type CloudCollection struct {
	Bks            map[string]CloudBk `json:"bks"`
	EtagVersion    int64              `json:"etagVersion"`
	LastUpdateTime time.Time          `json:"lastUpdateTime"`
}

// SameContent reports whether both snapshots carry identical tags per
// hash. Etag and timestamps are ignored.
func (cc CloudCollection) SameContent(other CloudCollection) bool {
	if len(cc.Bks) != len(other.Bks) {
		return false
	}
	for hash, bk := range cc.Bks {
		o, ok := other.Bks[hash]
		if !ok || len(o.Tags) != len(bk.Tags) {
			return false
		}
		for i := range bk.Tags {
			if bk.Tags[i] != o.Tags[i] {
				return false
			}
		}
	}
	return true
}
