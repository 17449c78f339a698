// Package config provides configuration file parsing.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fgeck/wakeonlan-homelab/internal/models"
	"github.com/fgeck/wakeonlan-homelab/internal/netutil"
	"github.com/fgeck/wakeonlan-homelab/internal/services/wol"
	"github.com/spf13/viper"
)

// Parser handles configuration file parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	return &Parser{v: v}
}

// LoadFile loads configuration from a file path.
func (p *Parser) LoadFile(path string) (*models.AppConfig, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse()
}

// LoadReader loads configuration from a reader (useful for testing).
func (p *Parser) LoadReader(content string) (*models.AppConfig, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

// Viper returns the underlying viper instance, e.g. to watch the loaded file.
func (p *Parser) Viper() *viper.Viper {
	return p.v
}

//nolint:gocognit,gocyclo // parsing config requires checking many fields
func (p *Parser) parse() (*models.AppConfig, error) {
	cfg := &models.AppConfig{}

	// Device (live preferences, defaults are sentinels).
	cfg.Device = models.DeviceConfig{
		Address:    p.v.GetString("device.address"),
		MACAddress: p.v.GetString("device.mac_address"),
	}
	if cfg.Device.Address == "" {
		cfg.Device.Address = models.SentinelAddress
	}
	if cfg.Device.MACAddress == "" {
		cfg.Device.MACAddress = models.SentinelMAC
	}

	// Network observation.
	cfg.Network = models.NetworkConfig{
		SubnetMask:   p.v.GetString("network.subnet_mask"),
		Interface:    p.v.GetString("network.interface"),
		WirelessOnly: p.v.GetBool("network.wireless_only"),
		PollInterval: p.v.GetDuration("network.poll_interval"),
	}
	if cfg.Network.SubnetMask == "" {
		cfg.Network.SubnetMask = models.SentinelAddress
	}
	if cfg.Network.PollInterval == 0 {
		cfg.Network.PollInterval = 2 * time.Second
	}

	// Interactive reachability probe.
	cfg.Probe = models.ProbeConfig{
		Method:     p.v.GetString("probe.method"),
		Timeout:    p.v.GetDuration("probe.timeout"),
		Ports:      p.v.GetIntSlice("probe.ports"),
		Privileged: p.v.GetBool("probe.privileged"),
	}
	if cfg.Probe.Method == "" {
		cfg.Probe.Method = "tcp"
	}
	if cfg.Probe.Timeout == 0 {
		cfg.Probe.Timeout = 500 * time.Millisecond
	}
	if len(cfg.Probe.Ports) == 0 {
		cfg.Probe.Ports = []int{7}
	}

	// Retrying wake monitor.
	cfg.Monitor = models.MonitorConfig{
		MaxAttempts:  p.v.GetInt("monitor.max_attempts"),
		Timeout:      p.v.GetDuration("monitor.timeout"),
		Backoff:      p.v.GetDuration("monitor.backoff"),
		InitialDelay: p.v.GetDuration("monitor.initial_delay"),
	}
	if cfg.Monitor.MaxAttempts == 0 {
		cfg.Monitor.MaxAttempts = 5
	}
	if cfg.Monitor.Timeout == 0 {
		cfg.Monitor.Timeout = 250 * time.Millisecond
	}
	if cfg.Monitor.Backoff == 0 {
		cfg.Monitor.Backoff = 10 * time.Second
	}
	if !p.v.IsSet("monitor.initial_delay") {
		cfg.Monitor.InitialDelay = 30 * time.Second
	}

	// Parse optional Telegram config.
	if p.v.IsSet("telegram") {
		cfg.Telegram = &models.TelegramConfig{
			BotToken: p.expandEnv(p.v.GetString("telegram.bot_token")),
			ChatID:   p.expandEnv(p.v.GetString("telegram.chat_id")),
		}

		if cfg.Telegram.BotToken == "" {
			return nil, fmt.Errorf("telegram.bot_token is required when telegram is configured")
		}
		if cfg.Telegram.ChatID == "" {
			return nil, fmt.Errorf("telegram.chat_id is required when telegram is configured")
		}
	}

	// Parse optional MQTT config.
	if p.v.IsSet("mqtt") {
		cfg.MQTT = &models.MQTTConfig{
			Broker:      p.expandEnv(p.v.GetString("mqtt.broker")),
			ClientID:    p.v.GetString("mqtt.client_id"),
			TopicPrefix: p.v.GetString("mqtt.topic_prefix"),
			Username:    p.expandEnv(p.v.GetString("mqtt.username")),
			Password:    p.expandEnv(p.v.GetString("mqtt.password")),
		}

		if cfg.MQTT.Broker == "" {
			return nil, fmt.Errorf("mqtt.broker is required when mqtt is configured")
		}
		if cfg.MQTT.ClientID == "" {
			cfg.MQTT.ClientID = "wakeonlan"
		}
		if cfg.MQTT.TopicPrefix == "" {
			cfg.MQTT.TopicPrefix = "wakeonlan"
		}
		cfg.MQTT.TopicPrefix = strings.TrimSuffix(cfg.MQTT.TopicPrefix, "/")
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func (p *Parser) expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate performs validation on the loaded configuration.
func Validate(cfg *models.AppConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if !netutil.IsValid(cfg.Device.Address) {
		return fmt.Errorf("device.address: %q: %w", cfg.Device.Address, netutil.ErrInvalidFormat)
	}
	if _, err := wol.ParseMAC(cfg.Device.MACAddress); err != nil {
		return fmt.Errorf("device.mac_address: %w", err)
	}
	if !netutil.IsValid(cfg.Network.SubnetMask) {
		return fmt.Errorf("network.subnet_mask: %q: %w", cfg.Network.SubnetMask, netutil.ErrInvalidFormat)
	}

	switch cfg.Probe.Method {
	case "tcp", "icmp":
	default:
		return fmt.Errorf("probe.method must be one of: tcp, icmp")
	}
	for _, port := range cfg.Probe.Ports {
		if port < 1 || port > 65535 {
			return fmt.Errorf("probe.ports: %d is not a valid port", port)
		}
	}

	if cfg.Monitor.MaxAttempts < 1 {
		return fmt.Errorf("monitor.max_attempts must be at least 1")
	}
	if cfg.Monitor.InitialDelay < 0 {
		return fmt.Errorf("monitor.initial_delay must not be negative")
	}

	return nil
}
