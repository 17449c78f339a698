package models

// SentinelAddress is used for IPv4 fields that carry no address.
const SentinelAddress = "0.0.0.0"

// SentinelMAC is the default device MAC address.
const SentinelMAC = "00:00:00:00:00:00"

// ConnectionState is the reachability state of the local network or the target device.
type ConnectionState string

const (
	ConnectionUnknown      ConnectionState = "UNKNOWN"
	ConnectionPending      ConnectionState = "PENDING"
	ConnectionDisconnected ConnectionState = "DISCONNECTED"
	ConnectionConnected    ConnectionState = "CONNECTED"
)

// WifiState describes the local network connection of this host.
type WifiState struct {
	ConnectionState  ConnectionState
	LocalAddress     string
	BroadcastAddress string
	SubnetMask       string
}

// NewWifiState returns the process-start Wi-Fi state.
func NewWifiState(mask string) WifiState {
	return WifiState{
		ConnectionState:  ConnectionDisconnected,
		LocalAddress:     SentinelAddress,
		BroadcastAddress: SentinelAddress,
		SubnetMask:       mask,
	}
}

// DeviceState describes the target device.
type DeviceState struct {
	ConnectionState ConnectionState
	Address         string
	MACAddress      string
}

// InterfaceEventKind is the kind of network interface signal.
type InterfaceEventKind string

const (
	InterfaceAttached            InterfaceEventKind = "ATTACHED"
	InterfaceLost                InterfaceEventKind = "LOST"
	InterfaceCapabilitiesChanged InterfaceEventKind = "CAPABILITIES_CHANGED"
)

// InterfaceEvent is a single network interface signal.
type InterfaceEvent struct {
	Kind             InterfaceEventKind
	Interface        string
	HasWifiTransport bool     // CapabilitiesChanged only
	IPv4Addresses    []string // CapabilitiesChanged only
}
