package main

import (
	"fmt"
	"os"

	"github.com/fgeck/wakeonlan-homelab/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file without sending packets or probing the device.`,
	RunE:  validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	if configFile == "" {
		log.Error().Msg("config file is required")
		return cmd.Help()
	}

	// Check if file exists
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		log.Error().Str("file", configFile).Msg("config file not found")
		return fmt.Errorf("config file not found: %s", configFile)
	}

	// Load configuration (validated during parse)
	parser := config.NewParser()
	cfg, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("configuration validation failed")
		return err
	}

	// Print configuration summary
	fmt.Println("Configuration is valid!")
	fmt.Println()
	fmt.Println("Device:")
	fmt.Printf("  Address: %s\n", cfg.Device.Address)
	fmt.Printf("  MAC Address: %s\n", cfg.Device.MACAddress)
	fmt.Println()
	fmt.Println("Network:")
	fmt.Printf("  Subnet Mask: %s\n", cfg.Network.SubnetMask)
	if cfg.Network.Interface != "" {
		fmt.Printf("  Interface: %s\n", cfg.Network.Interface)
	}
	fmt.Printf("  Wireless Only: %v\n", cfg.Network.WirelessOnly)
	fmt.Printf("  Poll Interval: %s\n", cfg.Network.PollInterval)
	fmt.Println()
	fmt.Println("Probe:")
	fmt.Printf("  Method: %s\n", cfg.Probe.Method)
	fmt.Printf("  Timeout: %s\n", cfg.Probe.Timeout)
	if cfg.Probe.Method == "tcp" {
		fmt.Printf("  Ports: %v\n", cfg.Probe.Ports)
	}
	fmt.Println()
	fmt.Println("Monitor:")
	fmt.Printf("  Max Attempts: %d\n", cfg.Monitor.MaxAttempts)
	fmt.Printf("  Timeout: %s\n", cfg.Monitor.Timeout)
	fmt.Printf("  Backoff: %s\n", cfg.Monitor.Backoff)
	fmt.Printf("  Initial Delay: %s\n", cfg.Monitor.InitialDelay)
	fmt.Println()
	fmt.Println("Optional Features:")
	fmt.Printf("  Telegram: %v\n", cfg.Telegram != nil)
	fmt.Printf("  MQTT: %v\n", cfg.MQTT != nil)

	if cfg.Telegram != nil {
		fmt.Println()
		fmt.Println("Telegram Configuration:")
		fmt.Printf("  Chat ID: %s\n", cfg.Telegram.ChatID)
		fmt.Printf("  Bot Token: (configured)\n")
	}

	if cfg.MQTT != nil {
		fmt.Println()
		fmt.Println("MQTT Configuration:")
		fmt.Printf("  Broker: %s\n", cfg.MQTT.Broker)
		fmt.Printf("  Client ID: %s\n", cfg.MQTT.ClientID)
		fmt.Printf("  Topic Prefix: %s\n", cfg.MQTT.TopicPrefix)
	}

	return nil
}
