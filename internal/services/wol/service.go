// Package wol provides Wake-on-LAN magic packet construction and sending.
package wol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"

	"github.com/fgeck/wakeonlan-homelab/internal/models"
	"github.com/fgeck/wakeonlan-homelab/internal/netutil"
	"github.com/mdlayher/wol"
	"github.com/rs/zerolog"
)

const (
	// MagicPacketSize is 6 sync bytes followed by 16 repetitions of the 6-byte MAC.
	MagicPacketSize = 102
	// Port is the UDP destination port for magic packets.
	Port = 9
)

// ErrSendFailure is returned when a magic packet could not be sent.
var ErrSendFailure = errors.New("wake packet send failure")

var macPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)

// Service defines the interface for Wake-on-LAN operations.
type Service interface {
	Send(ctx context.Context, mac, broadcastIP string) (*models.WOLResult, error)
}

// Client wraps the wol library for mocking.
type Client interface {
	Wake(addr string, mac net.HardwareAddr) error
}

// DefaultClient is the default implementation using mdlayher/wol.
// Each call opens a fresh socket and releases it before returning.
type DefaultClient struct{}

// Wake sends a magic packet for mac to addr (host:port).
func (c *DefaultClient) Wake(addr string, mac net.HardwareAddr) error {
	client, err := wol.NewClient()
	if err != nil {
		return fmt.Errorf("failed to create WOL client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Wake(addr, mac); err != nil {
		return fmt.Errorf("failed to send WOL packet: %w", err)
	}

	return nil
}

// ParseMAC parses a MAC address of exactly 6 colon-separated hex octets.
func ParseMAC(s string) (net.HardwareAddr, error) {
	if !macPattern.MatchString(s) {
		return nil, fmt.Errorf("%w: MAC address %q", netutil.ErrInvalidFormat, s)
	}
	mac, err := net.ParseMAC(s)
	if err != nil {
		return nil, fmt.Errorf("%w: MAC address %q: %v", netutil.ErrInvalidFormat, s, err)
	}
	return mac, nil
}

// BuildMagicPacket returns the 102-byte Wake-on-LAN payload for mac.
func BuildMagicPacket(mac string) ([]byte, error) {
	hw, err := ParseMAC(mac)
	if err != nil {
		return nil, err
	}

	p := &wol.MagicPacket{Target: hw}
	b, err := p.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", netutil.ErrInvalidFormat, err)
	}
	if len(b) != MagicPacketSize {
		return nil, fmt.Errorf("unexpected magic packet length %d", len(b))
	}
	return b, nil
}

// Impl implements the WOL Service interface.
type Impl struct {
	wolClient Client
	logger    zerolog.Logger
}

// New creates a new WOL service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		wolClient: &DefaultClient{},
		logger:    logger,
	}
}

// NewWithClient creates a new WOL service with a custom client (for testing).
func NewWithClient(logger zerolog.Logger, wolClient Client) *Impl {
	return &Impl{
		wolClient: wolClient,
		logger:    logger,
	}
}

// Send sends one magic packet for mac to broadcastIP on port 9.
// Malformed input and send errors are reported in the result, not as the returned error.
func (s *Impl) Send(ctx context.Context, mac, broadcastIP string) (*models.WOLResult, error) {
	result := &models.WOLResult{}

	hw, err := ParseMAC(mac)
	if err != nil {
		result.Error = err
		return result, nil
	}
	if !netutil.IsValid(broadcastIP) {
		result.Error = fmt.Errorf("%w: broadcast address %q", netutil.ErrInvalidFormat, broadcastIP)
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		result.Error = err
		return result, nil
	}

	result.Broadcast = net.JoinHostPort(broadcastIP, strconv.Itoa(Port))

	s.logger.Info().
		Str("mac", mac).
		Str("broadcast", result.Broadcast).
		Msg("sending WOL packet")

	if err := s.wolClient.Wake(result.Broadcast, hw); err != nil {
		result.Error = fmt.Errorf("%w: %v", ErrSendFailure, err)
		return result, nil //nolint:nilerr // error is stored in result struct
	}

	result.PacketSent = true
	s.logger.Info().Msg("WOL packet sent successfully")

	return result, nil
}
