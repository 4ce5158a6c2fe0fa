package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const jobTimeout = 5 * time.Second

type job struct {
	prefixes []string
	keys     []string
}

// Invalidator runs invalidations off the request path on a bounded queue.
// A full queue runs the job inline, so no invalidation is dropped.
type Invalidator struct {
	layer  *Layer
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	wg     sync.WaitGroup
}

// NewInvalidator starts workers draining a queue of queueSize jobs.
// queueSize <= 0 makes every invalidation synchronous.
func NewInvalidator(layer *Layer, queueSize, workers int, logger *slog.Logger) *Invalidator {
	if logger == nil {
		logger = slog.Default()
	}
	inv := &Invalidator{
		layer:  layer,
		logger: logger.With(slog.String("component", "cache-invalidator")),
	}
	if queueSize <= 0 {
		return inv
	}
	if workers <= 0 {
		workers = 1
	}
	inv.jobs = make(chan job, queueSize)
	for i := 0; i < workers; i++ {
		inv.wg.Add(1)
		go inv.worker()
	}
	return inv
}

// ItemChanged drops every list entry and the item's detail entry. Used after
// create, edit, delete, finalize and rate.
func (i *Invalidator) ItemChanged(ctx context.Context, itemID string) {
	i.enqueue(ctx, job{prefixes: []string{ListPrefix}, keys: []string{ItemKey(itemID)}})
}

// CommentAdded drops only the item's detail entry; lists carry no comments.
func (i *Invalidator) CommentAdded(ctx context.Context, itemID string) {
	i.enqueue(ctx, job{keys: []string{ItemKey(itemID)}})
}

func (i *Invalidator) enqueue(ctx context.Context, j job) {
	if !i.layer.Enabled() {
		return
	}

	i.mu.RLock()
	if i.jobs != nil && !i.closed {
		select {
		case i.jobs <- j:
			i.mu.RUnlock()
			return
		default:
			i.logger.Debug("invalidation queue full, running inline")
		}
	}
	i.mu.RUnlock()

	i.run(context.WithoutCancel(ctx), j)
}

func (i *Invalidator) worker() {
	defer i.wg.Done()
	for j := range i.jobs {
		i.run(context.Background(), j)
	}
}

func (i *Invalidator) run(parent context.Context, j job) {
	ctx, cancel := context.WithTimeout(parent, jobTimeout)
	defer cancel()
	for _, prefix := range j.prefixes {
		i.layer.InvalidatePrefix(ctx, prefix)
	}
	i.layer.Invalidate(ctx, j.keys...)
}

// Close stops accepting queued work and waits for the queue to drain.
// Later invalidations run synchronously.
func (i *Invalidator) Close(ctx context.Context) error {
	i.mu.Lock()
	if i.closed || i.jobs == nil {
		i.closed = true
		i.mu.Unlock()
		return nil
	}
	i.closed = true
	close(i.jobs)
	i.mu.Unlock()

	done := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
