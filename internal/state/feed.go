package state

import "sync"

// Feed fans out events to subscribers. Slow subscribers lose events once their buffer is full.
type Feed[T any] struct {
	mu   sync.Mutex
	subs map[int]chan T
	next int
}

// NewFeed creates an empty feed.
func NewFeed[T any]() *Feed[T] {
	return &Feed[T]{subs: make(map[int]chan T)}
}

// Subscribe registers a subscriber with the given buffer size.
// The returned function ends the subscription and closes the channel.
func (f *Feed[T]) Subscribe(buffer int) (<-chan T, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan T, buffer)
	id := f.next
	f.next++
	f.subs[id] = ch

	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(ch)
		}
	}
}

// Publish delivers v to every subscriber and returns the number of subscribers that dropped it.
func (f *Feed[T]) Publish(v T) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	dropped := 0
	for _, ch := range f.subs {
		select {
		case ch <- v:
		default:
			dropped++
		}
	}
	return dropped
}

// Close ends every subscription.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}
