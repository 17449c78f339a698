// Package probe performs single bounded-timeout reachability checks against a host.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/fgeck/wakeonlan-homelab/internal/models"
	"github.com/rs/zerolog"
)

// Result is the outcome of a single probe.
type Result int

const (
	Reachable Result = iota
	Unreachable
	Error
)

func (r Result) String() string {
	switch r {
	case Reachable:
		return "reachable"
	case Unreachable:
		return "unreachable"
	default:
		return "error"
	}
}

// ErrProbe wraps resolution and I/O failures during a probe.
var ErrProbe = errors.New("probe error")

const (
	// DefaultTimeout is used for interactive checks.
	DefaultTimeout = 500 * time.Millisecond
	// DefaultBackgroundTimeout is used by the retrying wake monitor.
	DefaultBackgroundTimeout = 250 * time.Millisecond
	// DefaultEchoPort is the TCP echo service port.
	DefaultEchoPort = 7
)

// Prober performs a reachability check. A non-nil error is returned only together with Error.
type Prober interface {
	Probe(ctx context.Context, host string, timeout time.Duration) (Result, error)
}

// Resolver allows mocking name resolution.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// New creates the prober selected by cfg.Method.
func New(logger zerolog.Logger, cfg models.ProbeConfig) Prober {
	if cfg.Method == "icmp" {
		return NewICMP(logger, cfg.Privileged)
	}
	return NewTCP(logger, cfg.Ports)
}

// resolveIPv4 returns the first IPv4 address of host.
func resolveIPv4(ctx context.Context, resolver Resolver, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
		return nil, fmt.Errorf("%w: %s is not an IPv4 address", ErrProbe, host)
	}

	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %s: %v", ErrProbe, host, err)
	}
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, fmt.Errorf("%w: no IPv4 address for %s", ErrProbe, host)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
