package cloud

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/MrSnakeDoc/bkmeta/internal/clock"
	"github.com/MrSnakeDoc/bkmeta/internal/domain"
	"github.com/MrSnakeDoc/bkmeta/internal/logger"
	redisconn "github.com/MrSnakeDoc/bkmeta/internal/redis"
)

var (
	// ErrEtagConflict means the remote moved on since it was fetched.
	ErrEtagConflict = errors.New("remote etag changed")
	ErrInvalidDSN   = errors.New("invalid cloud dsn")
)

// Remote stores the shared snapshot. The remote assigns etags: a
// successful Upload stores expected+1.
type Remote interface {
	// Fetch returns nil when nothing was uploaded yet.
	Fetch(ctx context.Context) (*domain.CloudCollection, error)
	Upload(ctx context.Context, snapshot domain.CloudCollection, expected int64) (int64, error)
	Close() error
}

type RemoteOptions struct {
	Logger logger.Logger
	Clock  clock.Clock
	Redis  redisconn.RetryPolicy
}

// OpenRemote selects a remote by DSN scheme: file (or a bare path) and
// redis/rediss.
func OpenRemote(dsn string, opts RemoteOptions) (Remote, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrInvalidDSN
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDSN, err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "", "file":
		path := dsn
		if parsed.Scheme != "" {
			path = parsed.Host + parsed.Path
			if path == "" {
				path = parsed.Opaque
			}
		}
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("%w: missing path in %q", ErrInvalidDSN, dsn)
		}
		return NewFileRemote(path, opts.Clock), nil
	case "redis", "rediss":
		client, err := redisconn.Dial(dsn, opts.Redis, opts.Logger)
		if err != nil {
			return nil, err
		}
		return NewRedisRemote(client, true, opts.Clock), nil
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidDSN, parsed.Scheme)
	}
}
