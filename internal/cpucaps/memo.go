package cpucaps

import (
	"sync"
	"sync/atomic"
)

// cell computes a value once and serves it for the rest of the process.
// A failed computation is not stored: the error goes back to the caller and
// the next get runs the producer again. Concurrent callers on an empty cell
// are serialized, so a successful producer runs exactly once.
type cell[T any] struct {
	done atomic.Bool
	mu   sync.Mutex
	val  T
}

func (c *cell[T]) get(produce func() (T, error)) (T, error) {
	if c.done.Load() {
		return c.val, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done.Load() {
		return c.val, nil
	}

	v, err := produce()
	if err != nil {
		var zero T
		return zero, err
	}
	c.val = v
	c.done.Store(true)
	return v, nil
}

// cached reports whether the cell holds a value.
func (c *cell[T]) cached() bool {
	return c.done.Load()
}
