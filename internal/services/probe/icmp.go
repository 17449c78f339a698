package probe

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// protocolICMP is the IANA protocol number of ICMPv4.
const protocolICMP = 1

// ICMPProber checks reachability with a single ICMP echo request.
// Unprivileged mode uses datagram ICMP sockets (net.ipv4.ping_group_range on Linux).
type ICMPProber struct {
	privileged bool
	resolver   Resolver
	seq        atomic.Uint32
	logger     zerolog.Logger
}

// NewICMP creates an ICMP echo prober.
func NewICMP(logger zerolog.Logger, privileged bool) *ICMPProber {
	return &ICMPProber{
		privileged: privileged,
		resolver:   net.DefaultResolver,
		logger:     logger,
	}
}

// Probe sends one echo request and waits for the matching reply.
func (p *ICMPProber) Probe(ctx context.Context, host string, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ip, err := resolveIPv4(ctx, p.resolver, host)
	if err != nil {
		return Error, err
	}

	network := "udp4"
	var dst net.Addr = &net.UDPAddr{IP: ip}
	if p.privileged {
		network = "ip4:icmp"
		dst = &net.IPAddr{IP: ip}
	}

	conn, err := icmp.ListenPacket(network, "0.0.0.0")
	if err != nil {
		return Error, fmt.Errorf("%w: opening icmp socket: %v", ErrProbe, err)
	}
	defer func() { _ = conn.Close() }()

	id := os.Getpid() & 0xffff
	seq := int(p.seq.Add(1) & 0xffff)
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{ID: id, Seq: seq, Data: []byte("wakeonlan")},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return Error, fmt.Errorf("%w: encoding echo request: %v", ErrProbe, err)
	}

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return Error, fmt.Errorf("%w: %v", ErrProbe, err)
	}

	if _, err := conn.WriteTo(wb, dst); err != nil {
		return Error, fmt.Errorf("%w: sending echo request: %v", ErrProbe, err)
	}

	rb := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(rb)
		if err != nil {
			if isTimeout(err) {
				return Unreachable, nil
			}
			return Error, fmt.Errorf("%w: reading echo reply: %v", ErrProbe, err)
		}

		rm, err := icmp.ParseMessage(protocolICMP, rb[:n])
		if err != nil || rm.Type != ipv4.ICMPTypeEchoReply {
			continue
		}
		echo, ok := rm.Body.(*icmp.Echo)
		if !ok || echo.Seq != seq {
			continue
		}
		// Datagram sockets rewrite the echo ID, so it is only checked on raw sockets.
		if p.privileged && echo.ID != id {
			continue
		}
		if !peerIP(peer).Equal(ip) {
			continue
		}

		p.logger.Debug().Str("host", host).Int("seq", seq).Msg("icmp echo reply received")
		return Reachable, nil
	}
}

func peerIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP
	case *net.IPAddr:
		return a.IP
	default:
		return nil
	}
}
