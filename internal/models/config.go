// Package models contains the data structures used throughout wakeonlan-homelab.
package models

import "time"

// AppConfig holds the complete configuration for the wake engine.
type AppConfig struct {
	Device   DeviceConfig
	Network  NetworkConfig
	Probe    ProbeConfig
	Monitor  MonitorConfig
	Telegram *TelegramConfig // nil if not configured
	MQTT     *MQTTConfig     // nil if not configured
}

// DeviceConfig identifies the target device to wake.
type DeviceConfig struct {
	Address    string // IPv4, default 0.0.0.0
	MACAddress string // default 00:00:00:00:00:00
}

// NetworkConfig controls local network observation.
type NetworkConfig struct {
	SubnetMask   string        // default 0.0.0.0
	Interface    string        // optional, first suitable interface if empty
	WirelessOnly bool          // if false, any up LAN interface counts as Wi-Fi transport
	PollInterval time.Duration // interface polling interval
}

// ProbeConfig controls interactive reachability checks.
type ProbeConfig struct {
	Method     string        // "tcp" (default) or "icmp"
	Timeout    time.Duration // default 500ms
	Ports      []int         // tcp only, default [7]
	Privileged bool          // icmp only, raw socket instead of datagram socket
}

// MonitorConfig controls the retrying wake monitor.
type MonitorConfig struct {
	MaxAttempts  int
	Timeout      time.Duration // per-attempt probe timeout
	Backoff      time.Duration // linear base interval
	InitialDelay time.Duration // wait before the first attempt
}
