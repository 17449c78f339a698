package netutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameSubnet(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		mask string
		want bool
	}{
		{"same /24", "192.168.2.10", "192.168.2.200", "255.255.255.0", true},
		{"different /24", "192.168.2.10", "192.168.3.200", "255.255.255.0", false},
		{"same /16", "10.1.2.3", "10.1.200.4", "255.255.0.0", true},
		{"zero mask matches anything", "192.168.2.10", "8.8.8.8", "0.0.0.0", true},
		{"host mask", "192.168.2.10", "192.168.2.11", "255.255.255.255", false},
		{"/25 boundary", "192.168.2.127", "192.168.2.128", "255.255.255.128", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SameSubnet(tt.a, tt.b, tt.mask)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSameSubnet_Symmetric(t *testing.T) {
	addrs := []string{"192.168.2.10", "192.168.3.200", "10.0.0.1", "0.0.0.0", "255.255.255.255"}
	masks := []string{"255.255.255.0", "255.255.0.0", "255.255.255.252", "0.0.0.0"}

	for _, a := range addrs {
		for _, b := range addrs {
			for _, m := range masks {
				ab, err := SameSubnet(a, b, m)
				require.NoError(t, err)
				ba, err := SameSubnet(b, a, m)
				require.NoError(t, err)
				assert.Equal(t, ab, ba, "a=%s b=%s mask=%s", a, b, m)
			}
		}
	}
}

func TestSameSubnet_InvalidFormat(t *testing.T) {
	inputs := [][3]string{
		{"192.168.2", "192.168.2.1", "255.255.255.0"},
		{"192.168.2.1", "192.168.2.256", "255.255.255.0"},
		{"192.168.2.1", "192.168.2.2", "255.255.255"},
		{"192.168.2.x", "192.168.2.2", "255.255.255.0"},
		{"192.168.2.-1", "192.168.2.2", "255.255.255.0"},
		{"", "192.168.2.2", "255.255.255.0"},
	}

	for _, in := range inputs {
		_, err := SameSubnet(in[0], in[1], in[2])
		assert.ErrorIs(t, err, ErrInvalidFormat, "input %v", in)
	}
}

func TestBroadcastAddress(t *testing.T) {
	tests := []struct {
		addr string
		mask string
		want string
	}{
		{"192.168.2.150", "255.255.255.0", "192.168.2.255"},
		{"10.1.2.3", "255.255.0.0", "10.1.255.255"},
		{"192.168.2.130", "255.255.255.128", "192.168.2.255"},
		{"192.168.2.5", "255.255.255.128", "192.168.2.127"},
		{"192.168.2.150", "0.0.0.0", "255.255.255.255"},
		{"192.168.2.150", "255.255.255.255", "192.168.2.150"},
	}

	for _, tt := range tests {
		got, err := BroadcastAddress(tt.addr, tt.mask)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "addr=%s mask=%s", tt.addr, tt.mask)
	}
}

func TestBroadcastAddress_InvalidFormat(t *testing.T) {
	_, err := BroadcastAddress("192.168.2.150", "255.255.255")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = BroadcastAddress("fe80::1", "255.255.255.0")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("0.0.0.0"))
	assert.True(t, IsValid(" 192.168.2.150 "))
	assert.False(t, IsValid("192.168.2.1000"))
	assert.False(t, IsValid("host.local"))
}
