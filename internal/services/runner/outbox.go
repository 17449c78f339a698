package runner

import (
	"sync"

	"github.com/fgeck/wakeonlan-homelab/internal/models"
)

// outbox is an unbounded event queue between the engine feed and the notification sinks.
type outbox struct {
	mu    sync.Mutex
	queue []models.Event
	ready chan struct{}
}

func newOutbox() *outbox {
	return &outbox{ready: make(chan struct{}, 1)}
}

func (o *outbox) push(ev models.Event) {
	o.mu.Lock()
	o.queue = append(o.queue, ev)
	o.mu.Unlock()

	select {
	case o.ready <- struct{}{}:
	default:
	}
}

// take removes and returns every queued event in order.
func (o *outbox) take() []models.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	q := o.queue
	o.queue = nil
	return q
}
