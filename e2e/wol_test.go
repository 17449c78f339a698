//go:build e2e

package e2e

import (
	"context"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/fgeck/wakeonlan-homelab/internal/services/probe"
	"github.com/fgeck/wakeonlan-homelab/internal/services/wol"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestWOL_LoopbackListener_E2E(t *testing.T) {
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	mac := "00:11:32:C2:2F:ED"
	hw, err := wol.ParseMAC(mac)
	require.NoError(t, err)

	client := &wol.DefaultClient{}
	require.NoError(t, client.Wake(conn.LocalAddr().String(), hw))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 1500)
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)

	expected, err := wol.BuildMagicPacket(mac)
	require.NoError(t, err)
	assert.Equal(t, wol.MagicPacketSize, n)
	assert.Equal(t, expected, buf[:n])
}

func TestWOL_RepeatedSendsReleaseSockets_E2E(t *testing.T) {
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	hw, err := wol.ParseMAC("AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)

	client := &wol.DefaultClient{}
	for i := 0; i < 50; i++ {
		require.NoError(t, client.Wake(conn.LocalAddr().String(), hw))
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 1500)
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, wol.MagicPacketSize, n)
}

func TestTCPProbe_LocalListener_E2E(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	prober := probe.NewTCP(testLogger(), []int{port})

	result, err := prober.Probe(context.Background(), "127.0.0.1", time.Second)

	require.NoError(t, err)
	assert.Equal(t, probe.Reachable, result)
}

// Real WOL test - only runs if explicitly configured
func TestRealWOL_E2E(t *testing.T) {
	mac := os.Getenv("TEST_WOL_MAC")
	if mac == "" {
		t.Skip("TEST_WOL_MAC not set")
	}

	broadcast := os.Getenv("TEST_WOL_BROADCAST")
	if broadcast == "" {
		broadcast = "255.255.255.255"
	}

	svc := wol.New(testLogger())

	result, err := svc.Send(context.Background(), mac, broadcast)

	require.NoError(t, err)
	assert.True(t, result.PacketSent)
	assert.Nil(t, result.Error)
}
