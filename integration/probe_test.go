//go:build integration

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fgeck/wakeonlan-homelab/internal/services/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestICMPProbeLoopback(t *testing.T) {
	if os.Getenv("TEST_ICMP") == "" {
		t.Skip("TEST_ICMP not set (needs ping_group_range or CAP_NET_RAW)")
	}

	prober := probe.NewICMP(testLogger(), os.Getenv("TEST_ICMP_PRIVILEGED") != "")

	result, err := prober.Probe(context.Background(), "127.0.0.1", time.Second)

	require.NoError(t, err)
	assert.Equal(t, probe.Reachable, result)
}

func TestICMPProbeRealDevice(t *testing.T) {
	host := os.Getenv("TEST_PROBE_HOST")
	if host == "" {
		t.Skip("TEST_PROBE_HOST not set")
	}

	prober := probe.NewICMP(testLogger(), os.Getenv("TEST_ICMP_PRIVILEGED") != "")

	result, err := prober.Probe(context.Background(), host, 2*time.Second)

	require.NoError(t, err)
	assert.Equal(t, probe.Reachable, result)
}

func TestTCPProbeRealDevice(t *testing.T) {
	host := os.Getenv("TEST_PROBE_HOST")
	if host == "" {
		t.Skip("TEST_PROBE_HOST not set")
	}

	prober := probe.NewTCP(testLogger(), nil)

	result, err := prober.Probe(context.Background(), host, 2*time.Second)

	require.NoError(t, err)
	assert.Equal(t, probe.Reachable, result)
}
