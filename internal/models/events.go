package models

import "time"

// EventType identifies a terminal event emitted by the engine.
type EventType string

const (
	EventWakeResult                EventType = "WAKE_RESULT"
	EventDeviceAvailabilityChanged EventType = "DEVICE_AVAILABILITY_CHANGED"
)

// Event is a terminal event for consumption by a presentation layer.
type Event struct {
	Type       EventType
	Timestamp  time.Time
	Device     DeviceState
	WakeResult WakeResult // EventWakeResult only
	Available  bool       // EventDeviceAvailabilityChanged only
}
