// Package state provides observable values and event feeds shared between the engine and its readers.
package state

import "sync"

// Cell holds a value owned by a single writer and observed by many readers.
// Subscribers always receive the most recent value; intermediate values may be coalesced.
type Cell[T any] struct {
	mu    sync.Mutex
	value T
	subs  map[int]chan T
	next  int
}

// NewCell creates a cell holding initial.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{
		value: initial,
		subs:  make(map[int]chan T),
	}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set replaces the current value and notifies subscribers.
func (c *Cell[T]) Set(v T) {
	c.Update(func(T) T { return v })
}

// Update applies fn to the current value under the cell lock and returns the committed value.
// fn must not call back into the cell.
func (c *Cell[T]) Update(fn func(T) T) T {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.value = fn(c.value)
	for _, ch := range c.subs {
		offer(ch, c.value)
	}
	return c.value
}

// Subscribe returns a channel that receives the current value immediately and every later value.
// The returned function ends the subscription and closes the channel.
func (c *Cell[T]) Subscribe() (<-chan T, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan T, 1)
	id := c.next
	c.next++
	c.subs[id] = ch
	ch <- c.value

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
	}
}

// offer replaces any unread value in ch with v. Caller holds the cell lock.
func offer[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
