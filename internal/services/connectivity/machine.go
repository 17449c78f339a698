// Package connectivity tracks the local network connection from interface signals.
package connectivity

import (
	"context"
	"sync"

	"github.com/fgeck/wakeonlan-homelab/internal/models"
	"github.com/fgeck/wakeonlan-homelab/internal/netutil"
	"github.com/fgeck/wakeonlan-homelab/internal/state"
	"github.com/rs/zerolog"
)

// Hooks are invoked after a transition has been committed.
type Hooks struct {
	// OnConnected fires once per transition into Connected.
	OnConnected func(models.WifiState)
	// OnDisconnected fires on every committed Disconnected state.
	OnDisconnected func(models.WifiState)
}

// Machine owns the Wi-Fi state. Readers observe it through State and Subscribe.
type Machine struct {
	mu     sync.Mutex
	wifi   *state.Cell[models.WifiState]
	hooks  Hooks
	logger zerolog.Logger
}

// New creates a machine in the Disconnected state using subnetMask for broadcast computation.
func New(logger zerolog.Logger, subnetMask string, hooks Hooks) *Machine {
	return &Machine{
		wifi:   state.NewCell(models.NewWifiState(subnetMask)),
		hooks:  hooks,
		logger: logger,
	}
}

// State returns the current Wi-Fi state.
func (m *Machine) State() models.WifiState {
	return m.wifi.Get()
}

// Subscribe observes Wi-Fi state changes.
func (m *Machine) Subscribe() (<-chan models.WifiState, func()) {
	return m.wifi.Subscribe()
}

// Transition computes the Wi-Fi state after ev.
// The returned error reports a broadcast address that could not be computed.
func Transition(cur models.WifiState, ev models.InterfaceEvent) (models.WifiState, error) {
	next := cur

	switch ev.Kind {
	case models.InterfaceAttached:
		next.ConnectionState = models.ConnectionUnknown
		next.LocalAddress = models.SentinelAddress
		next.BroadcastAddress = models.SentinelAddress
	case models.InterfaceLost:
		next.ConnectionState = models.ConnectionDisconnected
		next.LocalAddress = models.SentinelAddress
		next.BroadcastAddress = models.SentinelAddress
	case models.InterfaceCapabilitiesChanged:
		if !ev.HasWifiTransport {
			next.ConnectionState = models.ConnectionDisconnected
			next.LocalAddress = models.SentinelAddress
			next.BroadcastAddress = models.SentinelAddress
			break
		}
		addr, ok := firstIPv4(ev.IPv4Addresses)
		if !ok {
			return cur, nil
		}
		next.ConnectionState = models.ConnectionConnected
		next.LocalAddress = addr
		return withBroadcast(next)
	}

	return next, nil
}

// withBroadcast recomputes the broadcast address of a connected state.
func withBroadcast(s models.WifiState) (models.WifiState, error) {
	if s.ConnectionState != models.ConnectionConnected {
		s.BroadcastAddress = models.SentinelAddress
		return s, nil
	}
	b, err := netutil.BroadcastAddress(s.LocalAddress, s.SubnetMask)
	if err != nil {
		s.BroadcastAddress = models.SentinelAddress
		return s, err
	}
	s.BroadcastAddress = b
	return s, nil
}

func firstIPv4(addrs []string) (string, bool) {
	for _, a := range addrs {
		if netutil.IsValid(a) && a != models.SentinelAddress {
			return a, true
		}
	}
	return "", false
}

// Handle applies a single interface event.
func (m *Machine) Handle(ev models.InterfaceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var prev models.WifiState
	var berr error
	next := m.wifi.Update(func(cur models.WifiState) models.WifiState {
		prev = cur
		n, err := Transition(cur, ev)
		berr = err
		return n
	})

	if berr != nil {
		m.logger.Warn().Err(berr).
			Str("address", next.LocalAddress).
			Str("mask", next.SubnetMask).
			Msg("cannot compute broadcast address")
	}

	if prev.ConnectionState != next.ConnectionState || prev.LocalAddress != next.LocalAddress {
		m.logger.Info().
			Str("event", string(ev.Kind)).
			Str("interface", ev.Interface).
			Str("from", string(prev.ConnectionState)).
			Str("to", string(next.ConnectionState)).
			Str("address", next.LocalAddress).
			Str("broadcast", next.BroadcastAddress).
			Msg("wifi state changed")
	}

	m.fireHooks(prev, next)
}

// SetSubnetMask replaces the subnet mask and recomputes the broadcast address.
func (m *Machine) SetSubnetMask(mask string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var berr error
	next := m.wifi.Update(func(cur models.WifiState) models.WifiState {
		cur.SubnetMask = mask
		n, err := withBroadcast(cur)
		berr = err
		return n
	})

	if berr != nil {
		m.logger.Warn().Err(berr).Str("mask", mask).Msg("cannot compute broadcast address")
		return
	}
	m.logger.Info().
		Str("mask", mask).
		Str("broadcast", next.BroadcastAddress).
		Msg("subnet mask updated")
}

func (m *Machine) fireHooks(prev, next models.WifiState) {
	if next.ConnectionState == models.ConnectionDisconnected && m.hooks.OnDisconnected != nil {
		m.hooks.OnDisconnected(next)
	}
	if prev.ConnectionState != models.ConnectionConnected &&
		next.ConnectionState == models.ConnectionConnected &&
		m.hooks.OnConnected != nil {
		m.hooks.OnConnected(next)
	}
}

// Run applies events until ctx is done or events is closed.
func (m *Machine) Run(ctx context.Context, events <-chan models.InterfaceEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			m.Handle(ev)
		}
	}
}
