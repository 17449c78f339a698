// Package mqtt publishes engine events and device state to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/fgeck/wakeonlan-homelab/internal/models"
)

// Status payloads published to the status topic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Publisher publishes engine output to MQTT.
type Publisher interface {
	// PublishEvent sends a terminal engine event.
	// Returns error if publishing fails (should not crash the process).
	PublishEvent(event models.Event) error

	// PublishState sends the retained device state.
	PublishState(device models.DeviceState) error

	// OnWake registers fn to be called for every wake command received.
	OnWake(fn func()) error

	// Close disconnects from the broker.
	Close() error
}

// Topics derives the topic names from a prefix.
type Topics struct {
	Prefix string
}

// Events is the topic for WakeResult and DeviceAvailabilityChanged events.
func (t Topics) Events() string { return t.join("events") }

// State is the retained device state topic.
func (t Topics) State() string { return t.join("device/state") }

// Status is the retained online/offline topic, also used as last will.
func (t Topics) Status() string { return t.join("status") }

// WakeCommand is the topic a wake request is received on.
func (t Topics) WakeCommand() string { return t.join("wake/set") }

func (t Topics) join(suffix string) string {
	prefix := strings.TrimSuffix(t.Prefix, "/")
	if prefix == "" {
		return suffix
	}
	return prefix + "/" + suffix
}

// EventPayload represents the MQTT message payload for engine events.
type EventPayload struct {
	Event EventPayloadInner `json:"event"`
}

// EventPayloadInner contains the event details.
type EventPayloadInner struct {
	Timestamp  string        `json:"timestamp"`
	Type       string        `json:"type"`
	WakeResult string        `json:"wake_result,omitempty"`
	Available  *bool         `json:"available,omitempty"`
	Device     DevicePayload `json:"device"`
}

// DevicePayload represents the device state.
type DevicePayload struct {
	Address    string `json:"address"`
	MACAddress string `json:"mac_address"`
	State      string `json:"state"`
}

// StatePayload represents the retained device state message.
type StatePayload struct {
	Device DevicePayload `json:"device"`
}

func devicePayload(d models.DeviceState) DevicePayload {
	return DevicePayload{
		Address:    d.Address,
		MACAddress: d.MACAddress,
		State:      string(d.ConnectionState),
	}
}

// FormatEventPayload creates the JSON payload for an engine event.
func FormatEventPayload(event models.Event) ([]byte, error) {
	inner := EventPayloadInner{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Type:      string(event.Type),
		Device:    devicePayload(event.Device),
	}
	switch event.Type {
	case models.EventWakeResult:
		inner.WakeResult = string(event.WakeResult)
	case models.EventDeviceAvailabilityChanged:
		available := event.Available
		inner.Available = &available
	}
	return json.Marshal(EventPayload{Event: inner})
}

// FormatStatePayload creates the JSON payload for the retained device state.
func FormatStatePayload(device models.DeviceState) ([]byte, error) {
	return json.Marshal(StatePayload{Device: devicePayload(device)})
}
