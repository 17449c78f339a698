package main

import (
	"fmt"

	"github.com/fgeck/wakeonlan-homelab/internal/services/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether the device is reachable",
	Long:  `Probe the device once from the current network. The device is only probed when it is on the local subnet.`,
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	runnerSvc := runner.New(log.Logger)
	out, err := runnerSvc.Check(ctx, *cfg)
	if err != nil {
		log.Error().Err(err).Msg("check failed")
		return err
	}

	fmt.Printf("Network: %s\n", out.Wifi.ConnectionState)
	fmt.Printf("  Local address: %s\n", out.Wifi.LocalAddress)
	fmt.Printf("  Subnet mask: %s\n", out.Wifi.SubnetMask)
	fmt.Printf("  Broadcast: %s\n", out.Wifi.BroadcastAddress)
	fmt.Printf("Device: %s\n", out.Device.ConnectionState)
	fmt.Printf("  Address: %s\n", out.Device.Address)
	fmt.Printf("  MAC: %s\n", out.Device.MACAddress)

	return nil
}
