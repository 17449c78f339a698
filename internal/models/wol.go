package models

import "time"

// WakeResult is the outcome of a wake request reported to the presentation layer.
type WakeResult string

const (
	WakeSuccess          WakeResult = "SUCCESS"
	WakeFailure          WakeResult = "FAILURE"
	WakeWifiDisconnected WakeResult = "WIFI_DISCONNECTED"
	WakeSubnetMismatch   WakeResult = "SUBNET_MISMATCH"
)

// WOLResult holds the result of sending a single magic packet.
type WOLResult struct {
	PacketSent bool
	Broadcast  string // destination host:port
	Error      error
}

// WakeReport holds the result of a wake request.
type WakeReport struct {
	Result     WakeResult
	Broadcast  string
	Generation uint64 // monitor generation started for this wake, 0 if none
	Error      error
}

// WakeAttempt describes an outstanding retrying reachability check after a wake.
type WakeAttempt struct {
	TargetHost   string
	MACAddress   string
	MaxAttempts  int
	AttemptsMade int
	Timeout      time.Duration
	Backoff      time.Duration
	InitialDelay time.Duration
}
