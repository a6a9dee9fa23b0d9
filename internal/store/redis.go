package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/bkmeta/internal/domain"
)

// RedisBackend stores one JSON value per bookmark plus the tag registry
// and collection metadata in hashes. Entries never expire.
type RedisBackend struct {
	client     *redis.Client
	ownsClient bool
}

// NewRedisBackend wraps client. When owns is true Close also closes the client.
func NewRedisBackend(client *redis.Client, owns bool) *RedisBackend {
	return &RedisBackend{
		client:     client,
		ownsClient: owns,
	}
}

func (b *RedisBackend) Load(ctx context.Context) (*domain.Collection, error) {
	exists, err := b.client.Exists(ctx, KeyMeta).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check collection meta: %w", err)
	}
	if exists == 0 {
		return nil, nil
	}

	c := domain.NewCollection()

	meta, err := b.client.HGetAll(ctx, KeyMeta).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get collection meta: %w", err)
	}
	if v := meta["etag_version"]; v != "" {
		if c.EtagVersion, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid etag_version %q: %w", v, err)
		}
	}
	if v := meta["last_update_time"]; v != "" {
		if c.LastUpdateTime, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return nil, fmt.Errorf("invalid last_update_time %q: %w", v, err)
		}
	}

	ids, err := b.client.SMembers(ctx, KeyAllBookmarks).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmark IDs: %w", err)
	}
	if len(ids) > 0 {
		keys := make([]string, 0, len(ids))
		for _, id := range ids {
			keys = append(keys, BookmarkKey(id))
		}
		values, err := b.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to get bookmarks: %w", err)
		}
		for i, v := range values {
			raw, ok := v.(string)
			if !ok {
				// set member without value: skip it
				continue
			}
			var bk domain.Bk
			if err := json.Unmarshal([]byte(raw), &bk); err != nil {
				return nil, fmt.Errorf("failed to unmarshal bookmark %s: %w", keys[i], err)
			}
			c.Bks[bk.URL] = &bk
		}
	}

	tags, err := b.client.HGetAll(ctx, KeyTags).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	for name, raw := range tags {
		var tag domain.BkTag
		if err := json.Unmarshal([]byte(raw), &tag); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tag %s: %w", name, err)
		}
		c.Tags[name] = &tag
	}

	return c, nil
}

// Save rewrites everything in one MULTI/EXEC and drops bookmarks that are
// no longer part of c.
func (b *RedisBackend) Save(ctx context.Context, c *domain.Collection) error {
	if c == nil {
		return nil
	}

	existing, err := b.client.SMembers(ctx, KeyAllBookmarks).Result()
	if err != nil {
		return fmt.Errorf("failed to get bookmark IDs: %w", err)
	}

	ids := make([]interface{}, 0, len(c.Bks))
	keep := make(map[string]bool, len(c.Bks))
	values := make(map[string][]byte, len(c.Bks))
	for _, bk := range c.Bks {
		data, err := json.Marshal(bk)
		if err != nil {
			return fmt.Errorf("failed to marshal bookmark %s: %w", bk.URL, err)
		}
		values[BookmarkKey(bk.URLHash)] = data
		ids = append(ids, bk.URLHash)
		keep[bk.URLHash] = true
	}

	tagFields := make(map[string]interface{}, len(c.Tags))
	for name, tag := range c.Tags {
		data, err := json.Marshal(tag)
		if err != nil {
			return fmt.Errorf("failed to marshal tag %s: %w", name, err)
		}
		tagFields[name] = data
	}

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range existing {
			if !keep[id] {
				pipe.Del(ctx, BookmarkKey(id))
			}
		}
		for key, data := range values {
			pipe.Set(ctx, key, data, 0)
		}

		pipe.Del(ctx, KeyAllBookmarks)
		if len(ids) > 0 {
			pipe.SAdd(ctx, KeyAllBookmarks, ids...)
		}

		pipe.Del(ctx, KeyTags)
		if len(tagFields) > 0 {
			pipe.HSet(ctx, KeyTags, tagFields)
		}

		pipe.HSet(ctx, KeyMeta,
			"etag_version", c.EtagVersion,
			"last_update_time", c.LastUpdateTime.Format(time.RFC3339Nano))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save collection: %w", err)
	}
	return nil
}

// Client exposes the underlying connection for health checks.
func (b *RedisBackend) Client() *redis.Client { return b.client }

func (b *RedisBackend) Close() error {
	if !b.ownsClient {
		return nil
	}
	return b.client.Close()
}
