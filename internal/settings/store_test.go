package settings

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fgeck/wakeonlan-homelab/internal/models"
	"github.com/fgeck/wakeonlan-homelab/internal/netutil"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func receive(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(time.Second):
		require.FailNow(t, "no change received")
		return Change{}
	}
}

func assertNoChange(t *testing.T, ch <-chan Change) {
	t.Helper()
	select {
	case c := <-ch:
		assert.Failf(t, "unexpected change", "%+v", c)
	default:
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr error
	}{
		{"valid address", KeyDeviceAddress, "192.168.2.150", nil},
		{"valid mask", KeySubnetMask, "255.255.255.0", nil},
		{"valid mac", KeyDeviceMAC, "00:11:32:C2:2F:ED", nil},
		{"invalid address", KeyDeviceAddress, "192.168.2", netutil.ErrInvalidFormat},
		{"invalid mask", KeySubnetMask, "255.255.255.256", netutil.ErrInvalidFormat},
		{"invalid mac", KeyDeviceMAC, "00-11-32-C2-2F-ED", netutil.ErrInvalidFormat},
		{"unknown key", "probe.timeout", "1s", ErrUnknownKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.key, tt.value)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDefault(t *testing.T) {
	assert.Equal(t, models.SentinelAddress, Default(KeyDeviceAddress))
	assert.Equal(t, models.SentinelMAC, Default(KeyDeviceMAC))
	assert.Equal(t, models.SentinelAddress, Default(KeySubnetMask))
}

func TestMemoryStore_Defaults(t *testing.T) {
	s := NewMemoryStore(map[string]string{KeyDeviceAddress: "192.168.2.150", "unrelated": "x"})

	assert.Equal(t, "192.168.2.150", s.Get(KeyDeviceAddress))
	assert.Equal(t, models.SentinelMAC, s.Get(KeyDeviceMAC))
	assert.Equal(t, models.SentinelAddress, s.Get(KeySubnetMask))
	assert.Equal(t, "", s.Get("unrelated"))
}

func TestMemoryStore_SetNotifiesOnChange(t *testing.T) {
	s := NewMemoryStore(nil)
	ch, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.Set(KeySubnetMask, "255.255.255.0"))
	assert.Equal(t, Change{Key: KeySubnetMask, Value: "255.255.255.0"}, receive(t, ch))
	assert.Equal(t, "255.255.255.0", s.Get(KeySubnetMask))

	require.NoError(t, s.Set(KeySubnetMask, "255.255.255.0"))
	assertNoChange(t, ch)
}

func TestMemoryStore_SetRejectsInvalid(t *testing.T) {
	s := NewMemoryStore(nil)
	ch, cancel := s.Subscribe()
	defer cancel()

	err := s.Set(KeyDeviceMAC, "not-a-mac")

	assert.ErrorIs(t, err, netutil.ErrInvalidFormat)
	assert.Equal(t, models.SentinelMAC, s.Get(KeyDeviceMAC))
	assertNoChange(t, ch)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func loadViper(t *testing.T, path string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	return v
}

func TestViperStore_ReadsFile(t *testing.T) {
	path := writeConfig(t, `
device:
  address: "192.168.2.150"
  mac_address: "00:11:32:C2:2F:ED"
`)
	s := NewViperStore(testLogger(), loadViper(t, path))

	assert.Equal(t, "192.168.2.150", s.Get(KeyDeviceAddress))
	assert.Equal(t, "00:11:32:C2:2F:ED", s.Get(KeyDeviceMAC))
	assert.Equal(t, models.SentinelAddress, s.Get(KeySubnetMask))
}

func TestViperStore_SetPersists(t *testing.T) {
	path := writeConfig(t, `
device:
  address: "192.168.2.150"
probe:
  method: icmp
`)
	s := NewViperStore(testLogger(), loadViper(t, path))
	ch, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.Set(KeySubnetMask, "255.255.255.0"))

	assert.Equal(t, Change{Key: KeySubnetMask, Value: "255.255.255.0"}, receive(t, ch))
	assert.Equal(t, "255.255.255.0", s.Get(KeySubnetMask))

	reread := loadViper(t, path)
	assert.Equal(t, "255.255.255.0", reread.GetString(KeySubnetMask))
	assert.Equal(t, "192.168.2.150", reread.GetString(KeyDeviceAddress))
	assert.Equal(t, "icmp", reread.GetString("probe.method"))
}

func TestViperStore_SetRejectsInvalid(t *testing.T) {
	path := writeConfig(t, "device:\n  address: \"192.168.2.150\"\n")
	s := NewViperStore(testLogger(), loadViper(t, path))

	err := s.Set(KeyDeviceAddress, "192.168.2.300")

	assert.ErrorIs(t, err, netutil.ErrInvalidFormat)
	assert.Equal(t, "192.168.2.150", s.Get(KeyDeviceAddress))
}

func TestViperStore_ReloadPublishesChangedKeys(t *testing.T) {
	path := writeConfig(t, "device:\n  address: \"192.168.2.150\"\n")
	v := loadViper(t, path)
	s := NewViperStore(testLogger(), v)
	ch, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, os.WriteFile(path, []byte(`
device:
  address: "192.168.2.151"
  mac_address: "not-a-mac"
`), 0o600))
	require.NoError(t, v.ReadInConfig())
	s.reload()

	assert.Equal(t, Change{Key: KeyDeviceAddress, Value: "192.168.2.151"}, receive(t, ch))
	assertNoChange(t, ch)
	assert.Equal(t, models.SentinelMAC, s.Get(KeyDeviceMAC))
}

func TestViperStore_WatchFollowsFile(t *testing.T) {
	path := writeConfig(t, "network:\n  subnet_mask: \"255.255.0.0\"\n")
	s := NewViperStore(testLogger(), loadViper(t, path))
	ch, cancel := s.Subscribe()
	defer cancel()
	s.Watch()

	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte("network:\n  subnet_mask: \"255.255.255.0\"\n"), 0o600))
	require.NoError(t, os.Rename(tmp, path))

	assert.Equal(t, Change{Key: KeySubnetMask, Value: "255.255.255.0"}, receive(t, ch))
}
