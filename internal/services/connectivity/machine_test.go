package connectivity

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/fgeck/wakeonlan-homelab/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type hookRecorder struct {
	connected    []models.WifiState
	disconnected int
}

func (h *hookRecorder) hooks() Hooks {
	return Hooks{
		OnConnected:    func(s models.WifiState) { h.connected = append(h.connected, s) },
		OnDisconnected: func(models.WifiState) { h.disconnected++ },
	}
}

func capsChanged(addrs ...string) models.InterfaceEvent {
	return models.InterfaceEvent{
		Kind:             models.InterfaceCapabilitiesChanged,
		Interface:        "wlan0",
		HasWifiTransport: true,
		IPv4Addresses:    addrs,
	}
}

func TestNew_InitialState(t *testing.T) {
	m := New(testLogger(), "255.255.255.0", Hooks{})
	s := m.State()

	assert.Equal(t, models.ConnectionDisconnected, s.ConnectionState)
	assert.Equal(t, models.SentinelAddress, s.LocalAddress)
	assert.Equal(t, models.SentinelAddress, s.BroadcastAddress)
	assert.Equal(t, "255.255.255.0", s.SubnetMask)
}

func TestHandle_Attached(t *testing.T) {
	m := New(testLogger(), "255.255.255.0", Hooks{})
	m.Handle(capsChanged("192.168.2.10"))
	m.Handle(models.InterfaceEvent{Kind: models.InterfaceAttached})

	s := m.State()
	assert.Equal(t, models.ConnectionUnknown, s.ConnectionState)
	assert.Equal(t, models.SentinelAddress, s.LocalAddress)
}

func TestHandle_ConnectedComputesBroadcast(t *testing.T) {
	m := New(testLogger(), "255.255.255.0", Hooks{})
	m.Handle(capsChanged("192.168.2.10"))

	s := m.State()
	assert.Equal(t, models.ConnectionConnected, s.ConnectionState)
	assert.Equal(t, "192.168.2.10", s.LocalAddress)
	assert.Equal(t, "192.168.2.255", s.BroadcastAddress)
}

func TestHandle_FirstIPv4AddressWins(t *testing.T) {
	m := New(testLogger(), "255.255.255.0", Hooks{})
	m.Handle(capsChanged("fe80::1", "192.168.2.10", "10.0.0.5"))

	assert.Equal(t, "192.168.2.10", m.State().LocalAddress)
}

func TestHandle_WifiWithoutIPv4KeepsState(t *testing.T) {
	m := New(testLogger(), "255.255.255.0", Hooks{})
	m.Handle(models.InterfaceEvent{Kind: models.InterfaceAttached})
	m.Handle(capsChanged("fe80::1"))

	assert.Equal(t, models.ConnectionUnknown, m.State().ConnectionState)
}

func TestHandle_NoWifiTransport(t *testing.T) {
	rec := &hookRecorder{}
	m := New(testLogger(), "255.255.255.0", rec.hooks())
	m.Handle(capsChanged("192.168.2.10"))
	m.Handle(models.InterfaceEvent{Kind: models.InterfaceCapabilitiesChanged, HasWifiTransport: false})

	s := m.State()
	assert.Equal(t, models.ConnectionDisconnected, s.ConnectionState)
	assert.Equal(t, models.SentinelAddress, s.LocalAddress)
	assert.Equal(t, 1, rec.disconnected)
}

func TestHandle_LostFiresDisconnected(t *testing.T) {
	rec := &hookRecorder{}
	m := New(testLogger(), "255.255.255.0", rec.hooks())
	m.Handle(capsChanged("192.168.2.10"))
	m.Handle(models.InterfaceEvent{Kind: models.InterfaceLost})

	s := m.State()
	assert.Equal(t, models.ConnectionDisconnected, s.ConnectionState)
	assert.Equal(t, models.SentinelAddress, s.LocalAddress)
	assert.Equal(t, models.SentinelAddress, s.BroadcastAddress)
	assert.Equal(t, 1, rec.disconnected)
}

func TestHandle_ConnectedIsEdgeTriggered(t *testing.T) {
	rec := &hookRecorder{}
	m := New(testLogger(), "255.255.255.0", rec.hooks())

	m.Handle(capsChanged("192.168.2.10"))
	m.Handle(capsChanged("192.168.2.10"))
	m.Handle(capsChanged("192.168.2.11"))

	require.Len(t, rec.connected, 1)
	assert.Equal(t, "192.168.2.10", rec.connected[0].LocalAddress)

	// Through Unknown and back: a new edge.
	m.Handle(models.InterfaceEvent{Kind: models.InterfaceAttached})
	m.Handle(capsChanged("192.168.2.10"))
	assert.Len(t, rec.connected, 2)

	// Through Disconnected and back: a new edge.
	m.Handle(models.InterfaceEvent{Kind: models.InterfaceLost})
	m.Handle(capsChanged("192.168.2.10"))
	assert.Len(t, rec.connected, 3)
}

func TestHandle_HookSeesCommittedState(t *testing.T) {
	var m *Machine
	var observed models.WifiState
	m = New(testLogger(), "255.255.255.0", Hooks{
		OnConnected: func(models.WifiState) { observed = m.State() },
	})

	m.Handle(capsChanged("192.168.2.10"))

	assert.Equal(t, models.ConnectionConnected, observed.ConnectionState)
	assert.Equal(t, "192.168.2.10", observed.LocalAddress)
}

func TestSetSubnetMask_RecomputesBroadcast(t *testing.T) {
	m := New(testLogger(), "255.255.255.0", Hooks{})
	m.Handle(capsChanged("10.1.2.3"))
	assert.Equal(t, "10.1.2.255", m.State().BroadcastAddress)

	m.SetSubnetMask("255.255.0.0")
	assert.Equal(t, "10.1.255.255", m.State().BroadcastAddress)
	assert.Equal(t, "255.255.0.0", m.State().SubnetMask)
}

func TestSetSubnetMask_WhileDisconnected(t *testing.T) {
	m := New(testLogger(), "0.0.0.0", Hooks{})
	m.SetSubnetMask("255.255.255.0")

	s := m.State()
	assert.Equal(t, "255.255.255.0", s.SubnetMask)
	assert.Equal(t, models.SentinelAddress, s.BroadcastAddress)

	m.Handle(capsChanged("192.168.2.10"))
	assert.Equal(t, "192.168.2.255", m.State().BroadcastAddress)
}

func TestSetSubnetMask_InvalidMask(t *testing.T) {
	m := New(testLogger(), "255.255.255.0", Hooks{})
	m.Handle(capsChanged("192.168.2.10"))
	m.SetSubnetMask("255.255.255")

	s := m.State()
	assert.Equal(t, models.ConnectionConnected, s.ConnectionState)
	assert.Equal(t, models.SentinelAddress, s.BroadcastAddress)
}

func TestTransition_ZeroMaskBroadcast(t *testing.T) {
	next, err := Transition(models.NewWifiState("0.0.0.0"), capsChanged("192.168.2.10"))
	require.NoError(t, err)
	assert.Equal(t, "255.255.255.255", next.BroadcastAddress)
}

func TestSubscribe_SeesLatest(t *testing.T) {
	m := New(testLogger(), "255.255.255.0", Hooks{})
	ch, cancel := m.Subscribe()
	defer cancel()

	<-ch
	m.Handle(capsChanged("192.168.2.10"))

	s := <-ch
	assert.Equal(t, models.ConnectionConnected, s.ConnectionState)
}

func TestRun_ConsumesEvents(t *testing.T) {
	rec := &hookRecorder{}
	m := New(testLogger(), "255.255.255.0", rec.hooks())

	events := make(chan models.InterfaceEvent, 3)
	events <- models.InterfaceEvent{Kind: models.InterfaceAttached}
	events <- capsChanged("192.168.2.10")
	events <- capsChanged("192.168.2.10")
	close(events)

	err := m.Run(context.Background(), events)

	require.NoError(t, err)
	assert.Equal(t, models.ConnectionConnected, m.State().ConnectionState)
	assert.Len(t, rec.connected, 1)
}

func TestRun_StopsOnContext(t *testing.T) {
	m := New(testLogger(), "255.255.255.0", Hooks{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := m.Run(ctx, make(chan models.InterfaceEvent))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
