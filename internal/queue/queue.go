package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/bkmeta/internal/clock"
	"github.com/MrSnakeDoc/bkmeta/internal/collection"
	"github.com/MrSnakeDoc/bkmeta/internal/domain"
	"github.com/MrSnakeDoc/bkmeta/internal/logger"
)

const (
	// DefaultSize is the default capacity of the request channel
	DefaultSize = 256
	// DefaultBatch is the default max number of mutations applied per persistence pass
	DefaultBatch = 32
	// DefaultSaveTimeout bounds a single persistence pass
	DefaultSaveTimeout = 5 * time.Second
)

var (
	// ErrClosed is returned for requests submitted after Stop, or still pending when it ran.
	ErrClosed = errors.New("mutation queue closed")
	// ErrPersist wraps a persistence failure. The mutation itself was applied.
	ErrPersist = errors.New("persist collection")
	// ErrMutationPanic is returned when a mutation panicked. The queue keeps serving.
	ErrMutationPanic = errors.New("mutation panicked")
)

// Mutation is one deferred change to the collection. It runs on the
// queue's goroutine with exclusive access and must not block.
type Mutation func(c *domain.Collection)

// Persister writes a full collection snapshot.
type Persister interface {
	Save(ctx context.Context, c *domain.Collection) error
}

type Options struct {
	Size        int           // request channel capacity
	Batch       int           // max requests per persistence pass
	SaveTimeout time.Duration // timeout for each Save call
}

type request struct {
	mutate Mutation // nil means persist only
	done   chan error
}

// Queue serializes every write against a collection.Store.
//
// A single goroutine takes requests in arrival order, applies each one,
// issues one persistence pass for what it applied, and only then fulfils
// the requests' futures.
type Queue struct {
	store       *collection.Store
	persister   Persister
	clock       clock.Clock
	logger      logger.Logger
	batch       int
	saveTimeout time.Duration

	requests chan *request
	stopCh   chan struct{}
	exited   chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

// New creates a queue. Call Start before awaiting any future.
func New(store *collection.Store, persister Persister, clk clock.Clock, log logger.Logger, opts Options) *Queue {
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if opts.Batch <= 0 {
		opts.Batch = DefaultBatch
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = DefaultSaveTimeout
	}
	if clk == nil {
		clk = clock.System{}
	}

	return &Queue{
		store:       store,
		persister:   persister,
		clock:       clk,
		logger:      log,
		batch:       opts.Batch,
		saveTimeout: opts.SaveTimeout,
		requests:    make(chan *request, opts.Size),
		stopCh:      make(chan struct{}),
		exited:      make(chan struct{}),
	}
}

// Start launches the consumer goroutine. Calling it again is a no-op.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true
	go q.run()
}

// Stop ends the consumer after the batch in flight. Requests not yet
// applied complete with ErrClosed.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		<-q.exited
		return
	}
	q.stopped = true
	started := q.started
	close(q.stopCh)
	q.mu.Unlock()

	if !started {
		q.drain()
		close(q.exited)
		return
	}
	<-q.exited
}

// Depth returns the number of requests waiting.
func (q *Queue) Depth() int {
	return len(q.requests)
}

// Future completes once its request was applied and persisted.
type Future struct {
	done   <-chan error
	exited <-chan struct{}
}

// Wait blocks until the request completes or ctx ends. Returning on ctx
// does not cancel the request: it still runs in order.
func (f Future) Wait(ctx context.Context) error {
	select {
	case err := <-f.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-f.exited:
		select {
		case err := <-f.done:
			return err
		default:
			return ErrClosed
		}
	}
}

// Enqueue submits m without waiting for it to run.
func (q *Queue) Enqueue(ctx context.Context, m Mutation) (Future, error) {
	req := &request{mutate: m, done: make(chan error, 1)}

	select {
	case <-q.stopCh:
		return Future{}, ErrClosed
	default:
	}

	select {
	case q.requests <- req:
		return Future{done: req.done, exited: q.exited}, nil
	case <-q.stopCh:
		return Future{}, ErrClosed
	case <-ctx.Done():
		return Future{}, ctx.Err()
	}
}

// Push submits m and waits until it was applied and persisted.
func (q *Queue) Push(ctx context.Context, m Mutation) error {
	f, err := q.Enqueue(ctx, m)
	if err != nil {
		return err
	}
	return f.Wait(ctx)
}

// SaveNow forces a persistence pass ordered after everything already queued.
func (q *Queue) SaveNow(ctx context.Context) error {
	return q.Push(ctx, nil)
}

func (q *Queue) run() {
	defer close(q.exited)
	for {
		select {
		case req := <-q.requests:
			q.process(q.collect(req))
		case <-q.stopCh:
			q.drain()
			return
		}
	}
}

// collect takes first plus whatever is already pending, up to the batch size.
func (q *Queue) collect(first *request) []*request {
	batch := []*request{first}
	for len(batch) < q.batch {
		select {
		case req := <-q.requests:
			batch = append(batch, req)
		default:
			return batch
		}
	}
	return batch
}

func (q *Queue) process(batch []*request) {
	errs := make([]error, len(batch))
	q.store.Apply(func(c *domain.Collection) {
		for i, req := range batch {
			if req.mutate != nil {
				errs[i] = q.apply(req.mutate, c)
			}
		}
	})

	saveErr := q.persist(len(batch))
	for i, req := range batch {
		if errs[i] == nil {
			errs[i] = saveErr
		}
		req.done <- errs[i]
	}
}

func (q *Queue) apply(m Mutation, c *domain.Collection) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("mutation panicked",
				logger.String("panic", fmt.Sprint(r)))
			err = fmt.Errorf("%w: %v", ErrMutationPanic, r)
		}
	}()
	m(c)
	return nil
}

func (q *Queue) persist(batchSize int) error {
	if q.persister == nil {
		return nil
	}

	stamp := q.clock.Now()
	snapshot := q.store.Snapshot()
	snapshot.LastUpdateTime = stamp

	ctx, cancel := context.WithTimeout(context.Background(), q.saveTimeout)
	defer cancel()

	start := time.Now()
	if err := q.persister.Save(ctx, snapshot); err != nil {
		q.logger.Warn("failed to persist collection",
			logger.Int("batch", batchSize),
			logger.Error(err))
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	q.store.Apply(func(c *domain.Collection) {
		c.LastUpdateTime = stamp
	})
	q.logger.Debug("collection persisted",
		logger.Int("batch", batchSize),
		logger.Duration("took", time.Since(start)))
	return nil
}

func (q *Queue) drain() {
	for {
		select {
		case req := <-q.requests:
			req.done <- ErrClosed
		default:
			return
		}
	}
}
