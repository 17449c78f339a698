package main

import (
	"fmt"
	"strings"

	"github.com/fgeck/wakeonlan-homelab/internal/settings"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a device or network setting",
	Long: fmt.Sprintf(`Validate a setting and write it to the config file.
A running daemon picks up the change.

Keys: %s`, strings.Join(settings.Keys(), ", ")),
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

func runSet(cmd *cobra.Command, args []string) error {
	parser, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	key, value := args[0], args[1]
	store := settings.NewViperStore(log.Logger, parser.Viper())
	defer store.Close()

	if err := store.Set(key, value); err != nil {
		log.Error().Err(err).Str("key", key).Str("value", value).Msg("failed to change setting")
		return err
	}

	log.Info().Str("key", key).Str("value", value).Str("file", configFile).Msg("setting saved")
	return nil
}
