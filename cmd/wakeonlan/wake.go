package main

import (
	"fmt"

	"github.com/fgeck/wakeonlan-homelab/internal/services/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var waitForDevice bool

var wakeCmd = &cobra.Command{
	Use:   "wake",
	Short: "Send a Wake-on-LAN packet to the device",
	Long: `Send one magic packet to the broadcast address of the current network.
The device must be on the same subnet as this host.

With --wait the command keeps probing the device with the configured monitor
settings and reports whether it came up.`,
	RunE: runWake,
}

func init() {
	wakeCmd.Flags().BoolVarP(&waitForDevice, "wait", "w", false, "wait until the device is reachable or the attempts are exhausted")
}

func runWake(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	runnerSvc := runner.New(log.Logger)
	out, err := runnerSvc.Wake(ctx, *cfg, waitForDevice)
	if out != nil {
		fmt.Printf("Wake result: %s\n", out.Report.Result)
		fmt.Printf("  Network: %s (%s)\n", out.Wifi.ConnectionState, out.Wifi.LocalAddress)
		fmt.Printf("  Broadcast: %s\n", out.Report.Broadcast)
		fmt.Printf("  Device: %s %s\n", out.Device.Address, out.Device.ConnectionState)
		if out.Monitor != "" {
			note := ""
			if !out.Monitor.Terminal() {
				note = " (stopped on exit, use --wait to follow the device)"
			}
			fmt.Printf("  Monitor: %s%s\n", out.Monitor, note)
		}
	}
	if err != nil {
		log.Error().Err(err).Msg("wake failed")
		return err
	}

	return nil
}
