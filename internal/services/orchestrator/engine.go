// Package orchestrator couples Wi-Fi connectivity, device reachability and Wake-on-LAN into one engine.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fgeck/wakeonlan-homelab/internal/models"
	"github.com/fgeck/wakeonlan-homelab/internal/netutil"
	"github.com/fgeck/wakeonlan-homelab/internal/scheduler"
	"github.com/fgeck/wakeonlan-homelab/internal/services/connectivity"
	"github.com/fgeck/wakeonlan-homelab/internal/services/monitor"
	"github.com/fgeck/wakeonlan-homelab/internal/services/probe"
	"github.com/fgeck/wakeonlan-homelab/internal/services/wol"
	"github.com/fgeck/wakeonlan-homelab/internal/settings"
	"github.com/fgeck/wakeonlan-homelab/internal/state"
	"github.com/rs/zerolog"
)

const eventBuffer = 16

// Service defines the wake and reachability operations of the engine.
type Service interface {
	CheckDeviceConnectivity()
	WakeDevice(ctx context.Context) *models.WakeReport
}

// Engine owns the Wi-Fi and device state.
//
// Device state is written only under mu. Asynchronous writers (one-shot checks and
// wake monitors) carry the generation they were started with and drop their result
// when a newer check, wake, setting change or Wi-Fi loss has bumped it.
type Engine struct {
	wifi    *connectivity.Machine
	device  *state.Cell[models.DeviceState]
	events  *state.Feed[models.Event]
	wolSvc  wol.Service
	prober  probe.Prober
	monitor monitor.Service
	logger  zerolog.Logger

	probeTimeout time.Duration
	monitorCfg   models.MonitorConfig
	foreground   atomic.Bool

	mu         sync.Mutex
	checkGen   uint64
	monitorGen uint64

	ctx     context.Context
	cancel  context.CancelFunc
	checks  sync.WaitGroup
	closers []func()
}

// New creates an engine with the default wake, probe and monitor services.
func New(logger zerolog.Logger, cfg models.AppConfig) *Engine {
	sched := scheduler.New(logger)
	prober := probe.New(logger, cfg.Probe)
	mon := monitor.New(logger, sched, prober)

	e := NewWithServices(logger, cfg, wol.New(logger), prober, mon)
	e.OnClose(sched.Close)
	return e
}

// NewWithServices creates an engine with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	cfg models.AppConfig,
	wolSvc wol.Service,
	prober probe.Prober,
	mon monitor.Service,
) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	timeout := cfg.Probe.Timeout
	if timeout <= 0 {
		timeout = probe.DefaultTimeout
	}

	e := &Engine{
		device: state.NewCell(models.DeviceState{
			ConnectionState: models.ConnectionUnknown,
			Address:         orDefault(cfg.Device.Address, models.SentinelAddress),
			MACAddress:      orDefault(cfg.Device.MACAddress, models.SentinelMAC),
		}),
		events:       state.NewFeed[models.Event](),
		wolSvc:       wolSvc,
		prober:       prober,
		monitor:      mon,
		logger:       logger,
		probeTimeout: timeout,
		monitorCfg:   cfg.Monitor,
		ctx:          ctx,
		cancel:       cancel,
	}
	e.wifi = connectivity.New(logger, orDefault(cfg.Network.SubnetMask, models.SentinelAddress), connectivity.Hooks{
		OnConnected:    e.onWifiConnected,
		OnDisconnected: e.onWifiDisconnected,
	})
	return e
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// WifiState returns the current Wi-Fi state.
func (e *Engine) WifiState() models.WifiState {
	return e.wifi.State()
}

// DeviceState returns the current device state.
func (e *Engine) DeviceState() models.DeviceState {
	return e.device.Get()
}

// SubscribeWifi observes Wi-Fi state changes.
func (e *Engine) SubscribeWifi() (<-chan models.WifiState, func()) {
	return e.wifi.Subscribe()
}

// SubscribeDevice observes device state changes.
func (e *Engine) SubscribeDevice() (<-chan models.DeviceState, func()) {
	return e.device.Subscribe()
}

// Events subscribes to terminal events.
func (e *Engine) Events() (<-chan models.Event, func()) {
	return e.events.Subscribe(eventBuffer)
}

// SetForeground records whether a presentation layer is in the foreground.
// Availability events are only emitted while in the background.
func (e *Engine) SetForeground(foreground bool) {
	e.foreground.Store(foreground)
}

// Foreground reports the current foreground flag.
func (e *Engine) Foreground() bool {
	return e.foreground.Load()
}

// HandleInterfaceEvent applies a network interface signal.
func (e *Engine) HandleInterfaceEvent(ev models.InterfaceEvent) {
	e.wifi.Handle(ev)
}

// ApplySetting applies a live preference change.
func (e *Engine) ApplySetting(c settings.Change) {
	switch c.Key {
	case settings.KeySubnetMask:
		prev := e.wifi.State().SubnetMask
		e.wifi.SetSubnetMask(c.Value)
		// The device may have moved on or off the local subnet.
		wifi := e.wifi.State()
		if wifi.SubnetMask != prev && wifi.ConnectionState == models.ConnectionConnected {
			e.CheckDeviceConnectivity()
		}
	case settings.KeyDeviceAddress, settings.KeyDeviceMAC:
		e.updateDevice(c)
	default:
		e.logger.Warn().Str("key", c.Key).Msg("ignoring unknown setting")
	}
}

func (e *Engine) updateDevice(c settings.Change) {
	e.mu.Lock()
	prev := e.device.Get()
	next := prev
	if c.Key == settings.KeyDeviceAddress {
		next.Address = c.Value
	} else {
		next.MACAddress = c.Value
	}
	if next == prev {
		e.mu.Unlock()
		return
	}
	e.checkGen++
	e.monitorGen++
	next.ConnectionState = models.ConnectionUnknown
	e.device.Set(next)
	e.mu.Unlock()

	e.monitor.Cancel(prev.Address)
	e.logger.Info().
		Str("address", next.Address).
		Str("mac", next.MACAddress).
		Msg("device settings changed")

	if e.wifi.State().ConnectionState == models.ConnectionConnected {
		e.CheckDeviceConnectivity()
	}
}

func (e *Engine) onWifiConnected(models.WifiState) {
	e.CheckDeviceConnectivity()
}

func (e *Engine) onWifiDisconnected(models.WifiState) {
	e.mu.Lock()
	e.checkGen++
	e.monitorGen++
	dev := e.device.Update(func(d models.DeviceState) models.DeviceState {
		d.ConnectionState = models.ConnectionUnknown
		return d
	})
	e.mu.Unlock()

	e.monitor.Cancel(dev.Address)
}

// reachable reports whether the device can be probed from the current network.
func (e *Engine) reachable(wifi models.WifiState, dev models.DeviceState) (bool, error) {
	if wifi.ConnectionState != models.ConnectionConnected {
		return false, nil
	}
	return netutil.SameSubnet(dev.Address, wifi.LocalAddress, wifi.SubnetMask)
}

// CheckDeviceConnectivity probes the device once in the background when it is on the local subnet.
// Otherwise the device state is set to Unknown.
func (e *Engine) CheckDeviceConnectivity() {
	wifi := e.wifi.State()

	e.mu.Lock()
	dev := e.device.Get()
	ok, err := e.reachable(wifi, dev)
	e.checkGen++
	gen := e.checkGen
	if err != nil || !ok {
		e.setDeviceLocked(models.ConnectionUnknown)
		e.mu.Unlock()

		logEvent := e.logger.Debug().
			Str("wifi", string(wifi.ConnectionState)).
			Str("address", dev.Address)
		if err != nil {
			logEvent = logEvent.Err(err)
		}
		logEvent.Msg("device not checkable from current network")
		return
	}
	e.setDeviceLocked(models.ConnectionPending)
	e.checks.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.checks.Done()

		result, err := e.prober.Probe(e.ctx, dev.Address, e.probeTimeout)

		logEvent := e.logger.Debug().
			Str("address", dev.Address).
			Str("result", result.String())
		if err != nil {
			logEvent = logEvent.Err(err)
		}
		logEvent.Msg("connectivity check finished")

		e.mu.Lock()
		defer e.mu.Unlock()
		if gen != e.checkGen {
			return
		}
		switch result {
		case probe.Reachable:
			e.setDeviceLocked(models.ConnectionConnected)
		case probe.Unreachable:
			e.setDeviceLocked(models.ConnectionDisconnected)
		default:
			e.setDeviceLocked(models.ConnectionUnknown)
		}
	}()
}

// WakeDevice sends a magic packet to the configured device and starts the reachability monitor.
// Every call reports exactly one WakeResult, which is also published as an event.
func (e *Engine) WakeDevice(ctx context.Context) *models.WakeReport {
	wifi := e.wifi.State()
	dev := e.device.Get()
	report := &models.WakeReport{Broadcast: wifi.BroadcastAddress}

	defer func() {
		logEvent := e.logger.Info()
		if report.Error != nil {
			logEvent = e.logger.Warn().Err(report.Error)
		}
		logEvent.
			Str("result", string(report.Result)).
			Str("address", dev.Address).
			Str("mac", dev.MACAddress).
			Str("broadcast", report.Broadcast).
			Msg("wake request finished")

		// A successful wake is published by startMonitor, ahead of any monitor outcome.
		if report.Result != models.WakeSuccess {
			e.publishWake(report.Result, e.device.Get())
		}
	}()

	if wifi.ConnectionState != models.ConnectionConnected {
		report.Result = models.WakeWifiDisconnected
		return report
	}

	same, err := netutil.SameSubnet(dev.Address, wifi.LocalAddress, wifi.SubnetMask)
	if err != nil {
		report.Result = models.WakeFailure
		report.Error = fmt.Errorf("subnet check: %w", err)
		return report
	}
	if !same {
		report.Result = models.WakeSubnetMismatch
		return report
	}

	result, err := e.wolSvc.Send(ctx, dev.MACAddress, wifi.BroadcastAddress)
	if err != nil {
		report.Result = models.WakeFailure
		report.Error = err
		return report
	}
	if result.Error != nil {
		report.Result = models.WakeFailure
		report.Error = result.Error
		return report
	}

	report.Result = models.WakeSuccess
	report.Generation = e.startMonitor(dev)
	return report
}

func (e *Engine) startMonitor(dev models.DeviceState) uint64 {
	attempt := models.WakeAttempt{
		TargetHost:   dev.Address,
		MACAddress:   dev.MACAddress,
		MaxAttempts:  e.monitorCfg.MaxAttempts,
		Timeout:      e.monitorCfg.Timeout,
		Backoff:      e.monitorCfg.Backoff,
		InitialDelay: e.monitorCfg.InitialDelay,
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.checkGen++
	e.monitorGen++
	gen := e.monitorGen
	pending := e.setDeviceLocked(models.ConnectionPending)
	e.publishWake(models.WakeSuccess, pending)

	return e.monitor.Start(attempt, func(out monitor.Outcome) {
		e.finishMonitor(gen, out)
	})
}

func (e *Engine) finishMonitor(gen uint64, out monitor.Outcome) {
	available := out.Phase == monitor.PhaseSucceeded

	e.mu.Lock()
	if gen != e.monitorGen {
		e.mu.Unlock()
		return
	}
	var dev models.DeviceState
	if available {
		dev = e.setDeviceLocked(models.ConnectionConnected)
	} else {
		dev = e.setDeviceLocked(models.ConnectionDisconnected)
	}
	e.mu.Unlock()

	e.logger.Info().
		Str("address", dev.Address).
		Bool("available", available).
		Int("attempts", out.Attempt.AttemptsMade).
		Msg("device availability determined")

	if e.Foreground() {
		return
	}
	e.publish(models.Event{
		Type:      models.EventDeviceAvailabilityChanged,
		Timestamp: time.Now(),
		Device:    dev,
		Available: available,
	})
}

// setDeviceLocked sets the device connection state. Caller holds mu.
func (e *Engine) setDeviceLocked(cs models.ConnectionState) models.DeviceState {
	return e.device.Update(func(d models.DeviceState) models.DeviceState {
		if d.ConnectionState != cs {
			e.logger.Debug().
				Str("address", d.Address).
				Str("from", string(d.ConnectionState)).
				Str("to", string(cs)).
				Msg("device state changed")
		}
		d.ConnectionState = cs
		return d
	})
}

func (e *Engine) publishWake(result models.WakeResult, dev models.DeviceState) {
	e.publish(models.Event{
		Type:       models.EventWakeResult,
		Timestamp:  time.Now(),
		Device:     dev,
		WakeResult: result,
	})
}

func (e *Engine) publish(ev models.Event) {
	if dropped := e.events.Publish(ev); dropped > 0 {
		e.logger.Warn().Str("event", string(ev.Type)).Int("dropped", dropped).Msg("slow event subscribers")
	}
}

// WaitSettled blocks until the device state is no longer Pending or ctx is done.
func (e *Engine) WaitSettled(ctx context.Context) (models.DeviceState, error) {
	ch, cancel := e.device.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return e.device.Get(), ctx.Err()
		case d, ok := <-ch:
			if !ok {
				return e.device.Get(), nil
			}
			if d.ConnectionState != models.ConnectionPending {
				return d, nil
			}
		}
	}
}

// Run applies interface events and setting changes until ctx is done or the interface stream ends.
func (e *Engine) Run(ctx context.Context, ifaces <-chan models.InterfaceEvent, changes <-chan settings.Change) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ifaces:
			if !ok {
				return nil
			}
			e.HandleInterfaceEvent(ev)
		case c, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			e.ApplySetting(c)
		}
	}
}

// OnClose registers fn to run on Close after in-flight checks have finished.
// It must be called before the engine is used concurrently.
func (e *Engine) OnClose(fn func()) {
	e.closers = append(e.closers, fn)
}

// Wait blocks until in-flight connectivity checks have finished.
func (e *Engine) Wait() {
	e.checks.Wait()
}

// MonitorPhase returns the phase of the wake monitor for the current device address.
func (e *Engine) MonitorPhase() (monitor.Phase, bool) {
	return e.monitor.Phase(e.device.Get().Address)
}

// Close cancels in-flight checks and the wake monitor, stops the monitor scheduler and ends every
// event subscription. A device still Pending becomes Unknown.
func (e *Engine) Close() {
	e.cancel()
	e.checks.Wait()

	e.mu.Lock()
	e.checkGen++
	e.monitorGen++
	dev := e.device.Get()
	if dev.ConnectionState == models.ConnectionPending {
		dev = e.setDeviceLocked(models.ConnectionUnknown)
	}
	e.mu.Unlock()
	e.monitor.Cancel(dev.Address)

	for _, c := range e.closers {
		c()
	}
	e.events.Close()
}
