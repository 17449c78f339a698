// Package netwatch turns the host's network interface list into a stream of interface events.
package netwatch

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fgeck/wakeonlan-homelab/internal/models"
	"github.com/rs/zerolog"
)

// DefaultPollInterval is used when no poll interval is configured.
const DefaultPollInterval = 2 * time.Second

const eventBuffer = 16

// Link is a snapshot of a single network interface.
type Link struct {
	Name          string
	Up            bool
	Loopback      bool
	Wireless      bool
	IPv4Addresses []string
}

// Lister returns the current interfaces of the host.
type Lister interface {
	Links() ([]Link, error)
}

// SystemLister reads interfaces from the operating system.
type SystemLister struct {
	sysfs string
}

// NewSystemLister creates a lister backed by net.Interfaces.
func NewSystemLister() *SystemLister {
	return &SystemLister{sysfs: "/sys/class/net"}
}

// Links implements Lister.
func (l *SystemLister) Links() ([]Link, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}

	links := make([]Link, 0, len(ifaces))
	for _, iface := range ifaces {
		link := Link{
			Name:     iface.Name,
			Up:       iface.Flags&net.FlagUp != 0,
			Loopback: iface.Flags&net.FlagLoopback != 0,
			Wireless: l.isWireless(iface.Name),
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipNet.IP.To4(); ip4 != nil {
				link.IPv4Addresses = append(link.IPv4Addresses, ip4.String())
			}
		}

		links = append(links, link)
	}
	return links, nil
}

func (l *SystemLister) isWireless(name string) bool {
	if _, err := os.Stat(filepath.Join(l.sysfs, name, "wireless")); err == nil {
		return true
	}
	return strings.HasPrefix(name, "wl")
}

// Watcher polls a Lister and reports changes of the selected interface.
type Watcher struct {
	lister       Lister
	iface        string
	wirelessOnly bool
	interval     time.Duration
	logger       zerolog.Logger
}

// New creates a watcher over the host's interfaces.
func New(logger zerolog.Logger, cfg models.NetworkConfig) *Watcher {
	return NewWithLister(logger, cfg, NewSystemLister())
}

// NewWithLister creates a watcher with a custom lister (for testing).
func NewWithLister(logger zerolog.Logger, cfg models.NetworkConfig, lister Lister) *Watcher {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{
		lister:       lister,
		iface:        cfg.Interface,
		wirelessOnly: cfg.WirelessOnly,
		interval:     interval,
		logger:       logger,
	}
}

// Subscription is a running interface event stream.
type Subscription struct {
	// C receives interface events. It is closed when the subscription ends.
	C <-chan models.InterfaceEvent

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Close stops polling and waits for C to be closed.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// Subscribe starts polling until ctx is done or the subscription is closed.
// The first poll happens immediately.
func (w *Watcher) Subscribe(ctx context.Context) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan models.InterfaceEvent, eventBuffer)
	sub := &Subscription{C: ch, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		defer close(ch)
		w.loop(ctx, ch)
	}()

	return sub
}

func (w *Watcher) loop(ctx context.Context, out chan<- models.InterfaceEvent) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var prev *Link
	for {
		cur, err := w.poll()
		if err != nil {
			w.logger.Warn().Err(err).Msg("polling interfaces failed")
		} else {
			for _, ev := range w.diff(prev, cur) {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
			prev = cur
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Snapshot returns the events that describe the current interface state to a fresh observer.
func (w *Watcher) Snapshot() ([]models.InterfaceEvent, error) {
	cur, err := w.poll()
	if err != nil {
		return nil, err
	}
	return w.diff(nil, cur), nil
}

func (w *Watcher) poll() (*Link, error) {
	links, err := w.lister.Links()
	if err != nil {
		return nil, err
	}
	return w.selectLink(links), nil
}

// selectLink picks the interface to track: the configured one, else the first
// usable wireless interface, else (unless wireless only) the first usable interface with an IPv4 address.
func (w *Watcher) selectLink(links []Link) *Link {
	usable := func(l Link) bool { return l.Up && !l.Loopback }

	if w.iface != "" {
		for _, l := range links {
			if l.Name == w.iface && usable(l) {
				return &l
			}
		}
		return nil
	}

	for _, l := range links {
		if usable(l) && l.Wireless {
			return &l
		}
	}
	if w.wirelessOnly {
		return nil
	}
	for _, l := range links {
		if usable(l) && len(l.IPv4Addresses) > 0 {
			return &l
		}
	}
	return nil
}

func (w *Watcher) diff(prev, cur *Link) []models.InterfaceEvent {
	var events []models.InterfaceEvent

	switch {
	case prev == nil && cur == nil:
	case prev != nil && cur == nil:
		events = append(events, lost(prev))
	case prev == nil:
		events = append(events, attached(cur), w.capabilities(cur))
	case prev.Name != cur.Name:
		events = append(events, lost(prev), attached(cur), w.capabilities(cur))
	case prev.Wireless != cur.Wireless || !slices.Equal(prev.IPv4Addresses, cur.IPv4Addresses):
		events = append(events, w.capabilities(cur))
	}

	for _, ev := range events {
		w.logger.Debug().
			Str("event", string(ev.Kind)).
			Str("interface", ev.Interface).
			Bool("wifi", ev.HasWifiTransport).
			Strs("ipv4", ev.IPv4Addresses).
			Msg("interface event")
	}
	return events
}

func attached(l *Link) models.InterfaceEvent {
	return models.InterfaceEvent{Kind: models.InterfaceAttached, Interface: l.Name}
}

func lost(l *Link) models.InterfaceEvent {
	return models.InterfaceEvent{Kind: models.InterfaceLost, Interface: l.Name}
}

func (w *Watcher) capabilities(l *Link) models.InterfaceEvent {
	return models.InterfaceEvent{
		Kind:             models.InterfaceCapabilitiesChanged,
		Interface:        l.Name,
		HasWifiTransport: l.Wireless || !w.wirelessOnly,
		IPv4Addresses:    slices.Clone(l.IPv4Addresses),
	}
}
