// Package settings exposes the live user preferences of the wake engine.
package settings

import (
	"errors"
	"fmt"

	"github.com/fgeck/wakeonlan-homelab/internal/models"
	"github.com/fgeck/wakeonlan-homelab/internal/netutil"
	"github.com/fgeck/wakeonlan-homelab/internal/services/wol"
)

// Preference keys.
const (
	KeyDeviceAddress = "device.address"
	KeyDeviceMAC     = "device.mac_address"
	KeySubnetMask    = "network.subnet_mask"
)

// ErrUnknownKey is returned for keys that are not live preferences.
var ErrUnknownKey = errors.New("unknown setting")

// Keys lists every live preference.
func Keys() []string {
	return []string{KeyDeviceAddress, KeyDeviceMAC, KeySubnetMask}
}

// Default returns the value used when key is unset.
func Default(key string) string {
	if key == KeyDeviceMAC {
		return models.SentinelMAC
	}
	return models.SentinelAddress
}

// Change reports a new value of a preference.
type Change struct {
	Key   string
	Value string
}

// Store reads, persists and observes preferences.
type Store interface {
	Get(key string) string
	Set(key, value string) error
	Subscribe() (<-chan Change, func())
}

// Validate checks that value is well-formed for key.
func Validate(key, value string) error {
	switch key {
	case KeyDeviceAddress, KeySubnetMask:
		if !netutil.IsValid(value) {
			return fmt.Errorf("%s: %q: %w", key, value, netutil.ErrInvalidFormat)
		}
	case KeyDeviceMAC:
		if _, err := wol.ParseMAC(value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

func isKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}
