package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/bkmeta/internal/clock"
	"github.com/MrSnakeDoc/bkmeta/internal/domain"
)

// KeySnapshot holds the shared cloud snapshot as JSON.
const KeySnapshot = "bkmeta:cloud:snapshot"

// RedisRemote stores the snapshot under KeySnapshot and relies on WATCH
// for the etag check, so concurrent uploaders never both win.
type RedisRemote struct {
	client     *redis.Client
	ownsClient bool
	clock      clock.Clock
}

func NewRedisRemote(client *redis.Client, owns bool, clk clock.Clock) *RedisRemote {
	if clk == nil {
		clk = clock.System{}
	}
	return &RedisRemote{client: client, ownsClient: owns, clock: clk}
}

func (r *RedisRemote) Fetch(ctx context.Context) (*domain.CloudCollection, error) {
	return fetchSnapshot(ctx, r.client)
}

type snapshotGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func fetchSnapshot(ctx context.Context, c snapshotGetter) (*domain.CloudCollection, error) {
	raw, err := c.Get(ctx, KeySnapshot).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cloud snapshot: %w", err)
	}
	var cc domain.CloudCollection
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, fmt.Errorf("failed to parse cloud snapshot: %w", err)
	}
	if cc.Bks == nil {
		cc.Bks = make(map[string]domain.CloudBk)
	}
	return &cc, nil
}

func (r *RedisRemote) Upload(ctx context.Context, snapshot domain.CloudCollection, expected int64) (int64, error) {
	snapshot.EtagVersion = expected + 1
	snapshot.LastUpdateTime = r.clock.Now()
	data, err := json.Marshal(snapshot)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal cloud snapshot: %w", err)
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := fetchSnapshot(ctx, tx)
		if err != nil {
			return err
		}
		var have int64
		if current != nil {
			have = current.EtagVersion
		}
		if have != expected {
			return fmt.Errorf("%w: expected %d, found %d", ErrEtagConflict, expected, have)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, KeySnapshot, data, 0)
			return nil
		})
		return err
	}, KeySnapshot)

	if errors.Is(err, redis.TxFailedErr) {
		return 0, fmt.Errorf("%w: snapshot modified during upload", ErrEtagConflict)
	}
	if err != nil {
		return 0, err
	}
	return snapshot.EtagVersion, nil
}

func (r *RedisRemote) Close() error {
	if !r.ownsClient {
		return nil
	}
	return r.client.Close()
}
