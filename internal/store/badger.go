package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/MrSnakeDoc/bkmeta/internal/domain"
	"github.com/MrSnakeDoc/bkmeta/internal/logger"
)

var (
	badgerBookmarkPrefix = []byte("bk:")
	badgerTagPrefix      = []byte("tag:")
	badgerMetaKey        = []byte("meta")
)

const badgerGCDiscardRatio = 0.5

type badgerMeta struct {
	EtagVersion    int64     `json:"etagVersion"`
	LastUpdateTime time.Time `json:"lastUpdateTime"`
}

// BadgerBackend stores bookmarks and tags as individual JSON values in an
// embedded BadgerDB directory.
type BadgerBackend struct {
	db  *badger.DB
	log logger.Logger
}

func NewBadgerBackend(path string, log logger.Logger) (*BadgerBackend, error) {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With(logger.String("component", "badgerdb"))

	opts := badger.DefaultOptions(path)
	opts.Logger = &badgerLogger{log}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db at %s: %w", path, err)
	}
	log.Info("BadgerDB opened", logger.String("path", path))

	return &BadgerBackend{db: db, log: log}, nil
}

func bookmarkKey(urlHash string) []byte {
	return append(append([]byte{}, badgerBookmarkPrefix...), urlHash...)
}

func tagKey(name string) []byte {
	return append(append([]byte{}, badgerTagPrefix...), name...)
}

func (b *BadgerBackend) Load(_ context.Context) (*domain.Collection, error) {
	var c *domain.Collection

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerMetaKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read meta: %w", err)
		}

		var meta badgerMeta
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		}); err != nil {
			return fmt.Errorf("failed to decode meta: %w", err)
		}

		c = domain.NewCollection()
		c.EtagVersion = meta.EtagVersion
		c.LastUpdateTime = meta.LastUpdateTime

		if err := scanPrefix(txn, badgerBookmarkPrefix, func(key, val []byte) error {
			var bk domain.Bk
			if err := json.Unmarshal(val, &bk); err != nil {
				return fmt.Errorf("failed to decode bookmark %s: %w", key, err)
			}
			c.Bks[bk.URL] = &bk
			return nil
		}); err != nil {
			return err
		}

		return scanPrefix(txn, badgerTagPrefix, func(key, val []byte) error {
			var tag domain.BkTag
			if err := json.Unmarshal(val, &tag); err != nil {
				return fmt.Errorf("failed to decode tag %s: %w", key, err)
			}
			c.Tags[string(key[len(badgerTagPrefix):])] = &tag
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Save writes the whole snapshot in a single transaction and removes
// bookmarks and tags that are not part of c.
func (b *BadgerBackend) Save(_ context.Context, c *domain.Collection) error {
	if c == nil {
		return nil
	}

	keep := make(map[string]bool, len(c.Bks)+len(c.Tags))
	entries := make(map[string][]byte, len(c.Bks)+len(c.Tags)+1)

	for _, bk := range c.Bks {
		data, err := json.Marshal(bk)
		if err != nil {
			return fmt.Errorf("failed to marshal bookmark %s: %w", bk.URL, err)
		}
		k := string(bookmarkKey(bk.URLHash))
		keep[k] = true
		entries[k] = data
	}
	for name, tag := range c.Tags {
		data, err := json.Marshal(tag)
		if err != nil {
			return fmt.Errorf("failed to marshal tag %s: %w", name, err)
		}
		k := string(tagKey(name))
		keep[k] = true
		entries[k] = data
	}
	meta, err := json.Marshal(badgerMeta{EtagVersion: c.EtagVersion, LastUpdateTime: c.LastUpdateTime})
	if err != nil {
		return fmt.Errorf("failed to marshal meta: %w", err)
	}
	entries[string(badgerMetaKey)] = meta

	err = b.db.Update(func(txn *badger.Txn) error {
		var stale [][]byte
		for _, prefix := range [][]byte{badgerBookmarkPrefix, badgerTagPrefix} {
			if err := scanKeys(txn, prefix, func(key []byte) {
				if !keep[string(key)] {
					stale = append(stale, key)
				}
			}); err != nil {
				return err
			}
		}
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		for k, v := range entries {
			if err := txn.SetEntry(badger.NewEntry([]byte(k), v)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save collection: %w", err)
	}
	return nil
}

// Compact runs value-log GC until badger reports nothing left to rewrite
// and returns how many files were rewritten.
func (b *BadgerBackend) Compact(_ context.Context) (int, error) {
	rewritten := 0
	for {
		err := b.db.RunValueLogGC(badgerGCDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			return rewritten, nil
		}
		if err != nil {
			return rewritten, fmt.Errorf("value log gc failed: %w", err)
		}
		rewritten++
	}
}

func (b *BadgerBackend) Close() error {
	if err := b.db.Close(); err != nil {
		b.log.Error("Error closing BadgerDB", logger.Error(err))
		return err
	}
	b.log.Info("BadgerDB closed")
	return nil
}

func scanPrefix(txn *badger.Txn, prefix []byte, fn func(key, val []byte) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		val, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", key, err)
		}
		if err := fn(key, val); err != nil {
			return err
		}
	}
	return nil
}

func scanKeys(txn *badger.Txn, prefix []byte, fn func(key []byte)) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		fn(it.Item().KeyCopy(nil))
	}
	return nil
}

// badgerLogger adapts logger.Logger to badger.Logger.
type badgerLogger struct {
	log logger.Logger
}

func (l *badgerLogger) Errorf(f string, v ...interface{})   { l.log.Errorf(f, v...) }
func (l *badgerLogger) Warningf(f string, v ...interface{}) { l.log.Warnf(f, v...) }
func (l *badgerLogger) Infof(f string, v ...interface{})    { l.log.Debugf(f, v...) }
func (l *badgerLogger) Debugf(f string, v ...interface{})   { l.log.Debugf(f, v...) }
