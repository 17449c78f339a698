package settings

import (
	"fmt"
	"sync"

	"github.com/fgeck/wakeonlan-homelab/internal/state"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// ViperStore reads preferences from the config file and follows edits to it.
type ViperStore struct {
	mu      sync.Mutex
	v       *viper.Viper
	current map[string]string
	feed    *state.Feed[Change]
	logger  zerolog.Logger
}

// NewViperStore creates a store over v, which must already have read its config file.
func NewViperStore(logger zerolog.Logger, v *viper.Viper) *ViperStore {
	s := &ViperStore{
		v:       v,
		current: make(map[string]string, len(Keys())),
		feed:    state.NewFeed[Change](),
		logger:  logger,
	}
	for _, k := range Keys() {
		s.current[k] = s.read(k)
	}
	return s
}

func (s *ViperStore) read(key string) string {
	value := s.v.GetString(key)
	if value == "" {
		return Default(key)
	}
	return value
}

// Watch follows changes of the config file. Invalid values are ignored.
func (s *ViperStore) Watch() {
	s.v.OnConfigChange(func(e fsnotify.Event) {
		s.logger.Debug().Str("file", e.Name).Str("op", e.Op.String()).Msg("config file changed")
		s.reload()
	})
	s.v.WatchConfig()
}

func (s *ViperStore) reload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range Keys() {
		value := s.read(k)
		if value == s.current[k] {
			continue
		}
		if err := Validate(k, value); err != nil {
			s.logger.Warn().Err(err).Str("key", k).Msg("ignoring invalid setting")
			continue
		}
		s.current[k] = value
		s.logger.Info().Str("key", k).Str("value", value).Msg("setting changed")
		s.feed.Publish(Change{Key: k, Value: value})
	}
}

// Get implements Store.
func (s *ViperStore) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current[key]
}

// Set implements Store and writes the value back to the config file.
func (s *ViperStore) Set(key, value string) error {
	if err := Validate(key, value); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Write through a separate instance so the watched one keeps following the file.
	w := viper.New()
	w.SetConfigFile(s.v.ConfigFileUsed())
	if err := w.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	w.Set(key, value)
	if err := w.WriteConfig(); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	if s.current[key] != value {
		s.current[key] = value
		s.feed.Publish(Change{Key: key, Value: value})
	}
	return nil
}

// Subscribe implements Store.
func (s *ViperStore) Subscribe() (<-chan Change, func()) {
	return s.feed.Subscribe(len(Keys()) * 4)
}

// Close ends every subscription.
func (s *ViperStore) Close() {
	s.feed.Close()
}
