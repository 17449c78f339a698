// Package runner wires the wake engine to the network, live settings and notification sinks.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fgeck/wakeonlan-homelab/internal/models"
	"github.com/fgeck/wakeonlan-homelab/internal/services/monitor"
	"github.com/fgeck/wakeonlan-homelab/internal/services/mqtt"
	"github.com/fgeck/wakeonlan-homelab/internal/services/netwatch"
	"github.com/fgeck/wakeonlan-homelab/internal/services/orchestrator"
	"github.com/fgeck/wakeonlan-homelab/internal/services/telegram"
	"github.com/fgeck/wakeonlan-homelab/internal/settings"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// flushTimeout bounds notifications still queued when the daemon stops.
const flushTimeout = 10 * time.Second

// ErrWatcherStopped is returned when the interface stream ends while the daemon is still running.
var ErrWatcherStopped = errors.New("interface watcher stopped")

// Service defines the interface for the daemon and one-shot operations.
type Service interface {
	Run(ctx context.Context, cfg models.AppConfig, store settings.Store) error
	Wake(ctx context.Context, cfg models.AppConfig, wait bool) (*WakeOutcome, error)
	Check(ctx context.Context, cfg models.AppConfig) (*CheckOutcome, error)
}

// Watcher produces interface events.
type Watcher interface {
	Subscribe(ctx context.Context) *netwatch.Subscription
	Snapshot() ([]models.InterfaceEvent, error)
}

// EngineFactory builds an engine for a configuration.
type EngineFactory func(cfg models.AppConfig) *orchestrator.Engine

// WatcherFactory builds an interface watcher for a network configuration.
type WatcherFactory func(cfg models.NetworkConfig) Watcher

// PublisherFactory connects an MQTT publisher.
type PublisherFactory func(cfg models.MQTTConfig) (mqtt.Publisher, error)

// WakeOutcome holds the result of a one-shot wake.
// Monitor is the last phase of the reachability monitor seen before the engine closed.
type WakeOutcome struct {
	Report  *models.WakeReport
	Wifi    models.WifiState
	Device  models.DeviceState
	Monitor monitor.Phase
}

// CheckOutcome holds the result of a one-shot reachability check.
type CheckOutcome struct {
	Wifi   models.WifiState
	Device models.DeviceState
}

// Impl implements the runner Service interface.
type Impl struct {
	newEngine    EngineFactory
	newWatcher   WatcherFactory
	newPublisher PublisherFactory
	telegramSvc  telegram.Service
	logger       zerolog.Logger
}

// New creates a new runner service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		newEngine: func(cfg models.AppConfig) *orchestrator.Engine {
			return orchestrator.New(logger, cfg)
		},
		newWatcher: func(cfg models.NetworkConfig) Watcher {
			return netwatch.New(logger, cfg)
		},
		newPublisher: func(cfg models.MQTTConfig) (mqtt.Publisher, error) {
			return mqtt.NewRealPublisher(logger, cfg)
		},
		telegramSvc: telegram.New(logger),
		logger:      logger,
	}
}

// NewWithServices creates a new runner service with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	newEngine EngineFactory,
	newWatcher WatcherFactory,
	newPublisher PublisherFactory,
	telegramSvc telegram.Service,
) *Impl {
	return &Impl{
		newEngine:    newEngine,
		newWatcher:   newWatcher,
		newPublisher: newPublisher,
		telegramSvc:  telegramSvc,
		logger:       logger,
	}
}

// Run keeps the engine in sync with the network and settings until ctx is done.
// Terminal events go to Telegram and MQTT when configured; MQTT also receives the retained device state
// and may request wakes.
func (s *Impl) Run(ctx context.Context, cfg models.AppConfig, store settings.Store) error {
	engine := s.newEngine(cfg)

	// The store may already hold values newer than the loaded config.
	for _, key := range settings.Keys() {
		engine.ApplySetting(settings.Change{Key: key, Value: store.Get(key)})
	}

	pub := s.connectPublisher(cfg)
	box := newOutbox()
	defer func() {
		engine.Close()
		s.flush(ctx, cfg, pub, box)
		if pub == nil {
			return
		}
		if err := pub.PublishState(engine.DeviceState()); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish device state")
		}
		_ = pub.Close()
	}()

	events, unsubEvents := engine.Events()
	defer unsubEvents()
	states, unsubStates := engine.SubscribeDevice()
	defer unsubStates()
	changes, unsubChanges := store.Subscribe()
	defer unsubChanges()

	s.logger.Info().
		Str("address", engine.DeviceState().Address).
		Str("mac", engine.DeviceState().MACAddress).
		Bool("telegram", cfg.Telegram != nil).
		Bool("mqtt", pub != nil).
		Msg("wake engine started")

	g, gctx := errgroup.WithContext(ctx)

	sub := s.newWatcher(cfg.Network).Subscribe(gctx)
	g.Go(func() error {
		defer sub.Close()
		err := engine.Run(gctx, sub.C, changes)
		if err == nil && gctx.Err() == nil {
			return ErrWatcherStopped
		}
		return err
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				for {
					select {
					case ev := <-events:
						box.push(ev)
					default:
						return nil
					}
				}
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				box.push(ev)
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-box.ready:
				for _, ev := range box.take() {
					s.notify(gctx, cfg, pub, ev)
				}
			}
		}
	})

	if pub != nil {
		wakes := make(chan struct{}, 1)
		if err := pub.OnWake(func() {
			select {
			case wakes <- struct{}{}:
			default:
			}
		}); err != nil {
			s.logger.Warn().Err(err).Msg("remote wake disabled")
		}

		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-wakes:
					engine.WakeDevice(gctx)
				}
			}
		})

		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case dev, ok := <-states:
					if !ok {
						return nil
					}
					if err := pub.PublishState(dev); err != nil {
						s.logger.Warn().Err(err).Msg("failed to publish device state")
					}
				}
			}
		})
	}

	err := g.Wait()
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		err = nil
	}

	s.logger.Info().Err(err).Msg("wake engine stopped")
	return err
}

// flush delivers events still queued at shutdown. The sinks get flushTimeout even though ctx is done.
func (s *Impl) flush(ctx context.Context, cfg models.AppConfig, pub mqtt.Publisher, box *outbox) {
	pending := box.take()
	if len(pending) == 0 {
		return
	}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()
	for _, ev := range pending {
		s.notify(fctx, cfg, pub, ev)
	}
}

// Wake sends one magic packet from the current network state.
// With wait set it blocks until the reachability monitor has settled or ctx is done.
func (s *Impl) Wake(ctx context.Context, cfg models.AppConfig, wait bool) (*WakeOutcome, error) {
	engine := s.newEngine(cfg)
	events, unsub := engine.Events()
	defer unsub()

	out, err := s.wake(ctx, engine, cfg, wait)

	// Close lets a finishing monitor deliver its availability event and resets a device still Pending.
	engine.Close()
	final := engine.DeviceState()
	if out != nil {
		out.Device = final
	}
	s.drain(ctx, cfg, events, final)

	return out, err
}

func (s *Impl) wake(ctx context.Context, engine *orchestrator.Engine, cfg models.AppConfig, wait bool) (*WakeOutcome, error) {
	if err := s.prime(engine, cfg); err != nil {
		return nil, err
	}

	report := engine.WakeDevice(ctx)
	out := &WakeOutcome{Report: report, Wifi: engine.WifiState(), Device: engine.DeviceState()}
	if report.Result != models.WakeSuccess {
		return out, fmt.Errorf("wake failed: %s", report.Result)
	}
	out.Monitor, _ = engine.MonitorPhase()

	if wait {
		dev, err := engine.WaitSettled(ctx)
		out.Device = dev
		out.Monitor, _ = engine.MonitorPhase()
		if err != nil {
			return out, fmt.Errorf("waiting for device: %w", err)
		}
	}

	return out, nil
}

// Check probes the device once from the current network state.
func (s *Impl) Check(ctx context.Context, cfg models.AppConfig) (*CheckOutcome, error) {
	engine := s.newEngine(cfg)
	defer engine.Close()

	if err := s.prime(engine, cfg); err != nil {
		return nil, err
	}

	// Becoming Connected triggers the check. Without Wi-Fi the device stays Unknown.
	dev, err := engine.WaitSettled(ctx)
	engine.Wait()
	if err != nil {
		return nil, fmt.Errorf("checking device: %w", err)
	}

	s.logger.Info().
		Str("wifi", string(engine.WifiState().ConnectionState)).
		Str("address", dev.Address).
		Str("state", string(dev.ConnectionState)).
		Msg("connectivity check completed")

	return &CheckOutcome{Wifi: engine.WifiState(), Device: dev}, nil
}

// prime feeds the current interface snapshot to the engine.
func (s *Impl) prime(engine *orchestrator.Engine, cfg models.AppConfig) error {
	snapshot, err := s.newWatcher(cfg.Network).Snapshot()
	if err != nil {
		return fmt.Errorf("failed to read network interfaces: %w", err)
	}
	for _, ev := range snapshot {
		engine.HandleInterfaceEvent(ev)
	}

	wifi := engine.WifiState()
	s.logger.Debug().
		Str("wifi", string(wifi.ConnectionState)).
		Str("local", wifi.LocalAddress).
		Str("broadcast", wifi.BroadcastAddress).
		Msg("network state read")

	return nil
}

// drain delivers every event left on events to the configured sinks and publishes the final device state.
// events must be closed.
func (s *Impl) drain(ctx context.Context, cfg models.AppConfig, events <-chan models.Event, final models.DeviceState) {
	var collected []models.Event
	for ev := range events {
		collected = append(collected, ev)
	}
	if len(collected) == 0 {
		return
	}

	pub := s.connectPublisher(cfg)
	if pub != nil {
		defer func() { _ = pub.Close() }()
	}
	for _, ev := range collected {
		s.notify(ctx, cfg, pub, ev)
	}
	if pub != nil {
		if err := pub.PublishState(final); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish device state")
		}
	}
}

func (s *Impl) connectPublisher(cfg models.AppConfig) mqtt.Publisher {
	if cfg.MQTT == nil {
		return nil
	}
	pub, err := s.newPublisher(*cfg.MQTT)
	if err != nil {
		s.logger.Error().Err(err).Str("broker", cfg.MQTT.Broker).Msg("MQTT disabled")
		return nil
	}
	return pub
}

// notify forwards a terminal event. Failures are logged and never abort the caller.
func (s *Impl) notify(ctx context.Context, cfg models.AppConfig, pub mqtt.Publisher, ev models.Event) {
	if pub != nil {
		if err := pub.PublishEvent(ev); err != nil {
			s.logger.Warn().Err(err).Str("event", string(ev.Type)).Msg("failed to publish event")
		}
	}

	if cfg.Telegram == nil {
		return
	}
	result, err := s.telegramSvc.SendNotification(ctx, *cfg.Telegram, telegram.MessageFromEvent(ev))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to send Telegram notification")
		return
	}
	if result.Error != nil {
		s.logger.Error().Err(result.Error).Msg("failed to send Telegram notification")
		return
	}

	s.logger.Info().Str("event", string(ev.Type)).Msg("Telegram notification sent")
}
