package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/fgeck/wakeonlan-homelab/internal/config"
	"github.com/fgeck/wakeonlan-homelab/internal/models"
	"github.com/fgeck/wakeonlan-homelab/internal/services/runner"
	"github.com/fgeck/wakeonlan-homelab/internal/settings"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var errConfigRequired = errors.New("config file is required")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the wake engine as a daemon",
	Long: `Run the wake engine until interrupted:
1. Watch the network interface and track Wi-Fi connectivity
2. Check the device whenever the network becomes connected
3. Follow edits of device and subnet settings in the config file
4. Publish wake results and device availability (Telegram / MQTT, if configured)
5. Accept wake requests on the MQTT wake topic (if configured)`,
	RunE: runDaemon,
}

// loadConfig loads and validates the config file given by --config.
func loadConfig(cmd *cobra.Command) (*config.Parser, *models.AppConfig, error) {
	if configFile == "" {
		log.Error().Msg("config file is required")
		_ = cmd.Help()
		return nil, nil, errConfigRequired
	}

	parser := config.NewParser()
	cfg, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to load config")
		return nil, nil, err
	}

	log.Info().
		Str("config", configFile).
		Str("device", cfg.Device.Address).
		Str("mac", cfg.Device.MACAddress).
		Str("probe", cfg.Probe.Method).
		Msg("configuration loaded")

	return parser, cfg, nil
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

func runDaemon(cmd *cobra.Command, args []string) error {
	parser, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store := settings.NewViperStore(log.Logger, parser.Viper())
	store.Watch()
	defer store.Close()

	ctx, cancel := signalContext()
	defer cancel()

	runnerSvc := runner.New(log.Logger)
	if err := runnerSvc.Run(ctx, *cfg, store); err != nil {
		log.Error().Err(err).Msg("wake engine failed")
		return err
	}

	return nil
}
