// Package inflight guards user-triggered writes against concurrent duplicates.
package inflight

import (
	"context"
	"sync"
	"sync/atomic"
)

// Guard tracks keys whose operation is currently running.
type Guard interface {
	// Acquire atomically marks key as in flight.
	// Returns ErrInFlight if key is already held, ErrCapacity if the guard is full.
	Acquire(ctx context.Context, key string) error

	// Release clears key so the next attempt can proceed. Releasing an
	// unheld key is a no-op.
	Release(ctx context.Context, key string)

	// Do runs fn while holding key.
	Do(ctx context.Context, key string, fn func(ctx context.Context) error) error

	Size() int64
}

// inMemoryGuard keeps held keys in a map. When maxSize > 0 it refuses new
// keys once that many are held; maxSize <= 0 means unbounded.
type inMemoryGuard struct {
	mu      sync.Mutex
	held    map[string]struct{}
	maxSize int
	size    atomic.Int64
}

// NewInMemoryGuard creates a guard with configuration options.
func NewInMemoryGuard(opts ...Option) Guard {
	g := &inMemoryGuard{
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.held = make(map[string]struct{})
	return g
}

func (g *inMemoryGuard) Acquire(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.held[key]; exists {
		return ErrInFlight
	}
	if g.maxSize > 0 && len(g.held) >= g.maxSize {
		return ErrCapacity
	}
	g.held[key] = struct{}{}
	g.size.Add(1)
	return nil
}

func (g *inMemoryGuard) Release(_ context.Context, key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.held[key]; exists {
		delete(g.held, key)
		g.size.Add(-1)
	}
}

func (g *inMemoryGuard) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := g.Acquire(ctx, key); err != nil {
		return err
	}
	defer g.Release(ctx, key)
	return fn(ctx)
}

// Size returns the number of keys currently held.
func (g *inMemoryGuard) Size() int64 {
	return g.size.Load()
}
