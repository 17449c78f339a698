package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// DialFunc allows mocking TCP connects.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// TCPProber checks reachability with TCP connects. Any answer from the host,
// including a refused connection, means the host is up.
type TCPProber struct {
	ports    []int
	resolver Resolver
	dial     DialFunc
	logger   zerolog.Logger
}

// NewTCP creates a TCP prober for ports, defaulting to the echo port.
func NewTCP(logger zerolog.Logger, ports []int) *TCPProber {
	d := &net.Dialer{}
	return NewTCPWithDialer(logger, ports, net.DefaultResolver, d.DialContext)
}

// NewTCPWithDialer creates a TCP prober with a custom resolver and dialer (for testing).
func NewTCPWithDialer(logger zerolog.Logger, ports []int, resolver Resolver, dial DialFunc) *TCPProber {
	if len(ports) == 0 {
		ports = []int{DefaultEchoPort}
	}
	return &TCPProber{
		ports:    ports,
		resolver: resolver,
		dial:     dial,
		logger:   logger,
	}
}

// Probe connects to each configured port until the host answers or the timeout elapses.
func (p *TCPProber) Probe(ctx context.Context, host string, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ip, err := resolveIPv4(ctx, p.resolver, host)
	if err != nil {
		return Error, err
	}

	var lastErr error
	for _, port := range p.ports {
		addr := net.JoinHostPort(ip.String(), strconv.Itoa(port))

		conn, err := p.dial(ctx, "tcp", addr)
		if err == nil {
			_ = conn.Close()
			return Reachable, nil
		}

		switch {
		case errors.Is(err, syscall.ECONNREFUSED):
			return Reachable, nil
		case isTimeout(err), errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.EHOSTDOWN):
			p.logger.Debug().Err(err).Str("addr", addr).Msg("tcp probe got no answer")
			if ctx.Err() != nil {
				return Unreachable, nil
			}
			lastErr = nil
		case ctx.Err() != nil:
			return Unreachable, nil
		default:
			p.logger.Debug().Err(err).Str("addr", addr).Msg("tcp probe failed")
			lastErr = err
		}
	}

	if lastErr != nil {
		return Error, fmt.Errorf("%w: %v", ErrProbe, lastErr)
	}
	return Unreachable, nil
}
