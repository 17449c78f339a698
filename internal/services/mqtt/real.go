package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/fgeck/wakeonlan-homelab/internal/models"
	"github.com/rs/zerolog"
)

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client paho.Client
	topics Topics
	logger zerolog.Logger

	mu   sync.Mutex
	wake func()
}

// NewRealPublisher creates a publisher connected to the configured broker.
// The status topic carries "online" while connected and "offline" as last will.
func NewRealPublisher(logger zerolog.Logger, cfg models.MQTTConfig) (*RealPublisher, error) {
	topics := Topics{Prefix: cfg.TopicPrefix}
	p := &RealPublisher{topics: topics, logger: logger}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(topics.Status(), StatusOffline, 1, true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn().Err(err).Str("broker", cfg.Broker).Msg("MQTT connection lost")
	})
	// Runs on every (re)connect. Subscriptions do not survive a reconnect with a clean session.
	opts.SetOnConnectHandler(func(c paho.Client) {
		c.Publish(topics.Status(), 1, true, StatusOnline)

		p.mu.Lock()
		subscribed := p.wake != nil
		p.mu.Unlock()
		if subscribed {
			c.Subscribe(topics.WakeCommand(), 1, p.handleWake)
		}
	})

	client := paho.NewClient(opts)
	p.client = client
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		client.Disconnect(0) // stop connect retries
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	logger.Info().
		Str("broker", cfg.Broker).
		Str("client_id", cfg.ClientID).
		Str("prefix", cfg.TopicPrefix).
		Msg("connected to MQTT broker")

	return p, nil
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// PublishEvent sends an engine event to the MQTT broker.
func (p *RealPublisher) PublishEvent(event models.Event) error {
	payload, err := FormatEventPayload(event)
	if err != nil {
		return fmt.Errorf("format event payload: %w", err)
	}

	// QoS 1 (at-least-once), not retained
	return p.publish(p.topics.Events(), 1, false, payload)
}

// PublishState sends the device state as a retained message.
func (p *RealPublisher) PublishState(device models.DeviceState) error {
	payload, err := FormatStatePayload(device)
	if err != nil {
		return fmt.Errorf("format state payload: %w", err)
	}

	return p.publish(p.topics.State(), 0, true, payload)
}

func (p *RealPublisher) handleWake(_ paho.Client, msg paho.Message) {
	p.mu.Lock()
	fn := p.wake
	p.mu.Unlock()

	p.logger.Info().Str("topic", msg.Topic()).Msg("wake command received")
	if fn != nil {
		fn()
	}
}

// OnWake subscribes to the wake command topic.
func (p *RealPublisher) OnWake(fn func()) error {
	p.mu.Lock()
	p.wake = fn
	p.mu.Unlock()

	token := p.client.Subscribe(p.topics.WakeCommand(), 1, p.handleWake)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

// Close publishes the offline status and disconnects from the broker.
func (p *RealPublisher) Close() error {
	if err := p.publish(p.topics.Status(), 1, true, []byte(StatusOffline)); err != nil {
		p.logger.Warn().Err(err).Msg("failed to publish offline status")
	}
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
