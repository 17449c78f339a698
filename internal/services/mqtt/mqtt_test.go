package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fgeck/wakeonlan-homelab/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDevice() models.DeviceState {
	return models.DeviceState{
		ConnectionState: models.ConnectionConnected,
		Address:         "192.168.2.150",
		MACAddress:      "00:11:32:C2:2F:ED",
	}
}

func TestTopics(t *testing.T) {
	tests := []struct {
		prefix string
		events string
		wake   string
	}{
		{"wakeonlan", "wakeonlan/events", "wakeonlan/wake/set"},
		{"home/nas/", "home/nas/events", "home/nas/wake/set"},
		{"", "events", "wake/set"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			topics := Topics{Prefix: tt.prefix}
			assert.Equal(t, tt.events, topics.Events())
			assert.Equal(t, tt.wake, topics.WakeCommand())
		})
	}

	topics := Topics{Prefix: "wakeonlan"}
	assert.Equal(t, "wakeonlan/device/state", topics.State())
	assert.Equal(t, "wakeonlan/status", topics.Status())
}

func TestFormatEventPayload_WakeResult(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.FixedZone("CET", 3600))
	event := models.Event{
		Type:       models.EventWakeResult,
		Timestamp:  ts,
		Device:     testDevice(),
		WakeResult: models.WakeSuccess,
	}

	data, err := FormatEventPayload(event)
	require.NoError(t, err)

	var payload EventPayload
	require.NoError(t, json.Unmarshal(data, &payload))

	assert.Equal(t, "2024-01-15T09:30:00Z", payload.Event.Timestamp)
	assert.Equal(t, "WAKE_RESULT", payload.Event.Type)
	assert.Equal(t, string(models.WakeSuccess), payload.Event.WakeResult)
	assert.Nil(t, payload.Event.Available)
	assert.Equal(t, "192.168.2.150", payload.Event.Device.Address)
	assert.Equal(t, "00:11:32:C2:2F:ED", payload.Event.Device.MACAddress)
	assert.Equal(t, "CONNECTED", payload.Event.Device.State)
}

func TestFormatEventPayload_Availability(t *testing.T) {
	event := models.Event{
		Type:      models.EventDeviceAvailabilityChanged,
		Timestamp: time.Now(),
		Device:    testDevice(),
		Available: false,
	}

	data, err := FormatEventPayload(event)
	require.NoError(t, err)

	// Available must be present even when false.
	assert.Contains(t, string(data), `"available":false`)
	assert.NotContains(t, string(data), "wake_result")
}

func TestFormatStatePayload(t *testing.T) {
	data, err := FormatStatePayload(testDevice())
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"device":{"address":"192.168.2.150","mac_address":"00:11:32:C2:2F:ED","state":"CONNECTED"}}`,
		string(data))
}

func TestFakePublisher(t *testing.T) {
	fake := NewFakePublisher()
	var _ Publisher = fake

	event := models.Event{Type: models.EventWakeResult, Device: testDevice(), WakeResult: models.WakeFailure}
	require.NoError(t, fake.PublishEvent(event))
	require.NoError(t, fake.PublishState(testDevice()))

	events, states := fake.Snapshot()
	require.Len(t, events, 1)
	require.Len(t, states, 1)
	assert.Len(t, fake.Payloads, 1)
	assert.Equal(t, models.WakeFailure, events[0].WakeResult)

	fake.PublishError = errors.New("broker down")
	assert.Error(t, fake.PublishEvent(event))
	assert.Error(t, fake.PublishState(testDevice()))

	require.NoError(t, fake.Close())
	assert.True(t, fake.Closed)
}

func TestFakePublisher_TriggerWake(t *testing.T) {
	fake := NewFakePublisher()

	// no handler registered
	fake.TriggerWake()

	calls := 0
	require.NoError(t, fake.OnWake(func() { calls++ }))
	fake.TriggerWake()
	fake.TriggerWake()

	assert.Equal(t, 2, calls)
}
