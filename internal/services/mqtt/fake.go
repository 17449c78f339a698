package mqtt

import (
	"sync"

	"github.com/fgeck/wakeonlan-homelab/internal/models"
)

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Events contains all engine events that were published.
	Events []models.Event

	// Payloads contains the JSON payloads of published events.
	Payloads [][]byte

	// States contains all device states that were published.
	States []models.DeviceState

	// PublishError, if set, will be returned by PublishEvent and PublishState.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	wake func()
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishEvent records the event.
func (f *FakePublisher) PublishEvent(event models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatEventPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)

	return nil
}

// PublishState records the device state.
func (f *FakePublisher) PublishState(device models.DeviceState) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}
	f.States = append(f.States, device)
	return nil
}

// OnWake records the wake handler.
func (f *FakePublisher) OnWake(fn func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wake = fn
	return nil
}

// TriggerWake simulates a wake command from the broker.
func (f *FakePublisher) TriggerWake() {
	f.mu.Lock()
	fn := f.wake
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Snapshot returns copies of the recorded events and states.
func (f *FakePublisher) Snapshot() ([]models.Event, []models.DeviceState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Event(nil), f.Events...), append([]models.DeviceState(nil), f.States...)
}
