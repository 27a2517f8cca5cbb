package config

import (
	"encoding/binary"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"firestige.xyz/bypass/internal/arp"
	"firestige.xyz/bypass/internal/core"
	"firestige.xyz/bypass/internal/queue"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
bypass:
  nic:
    driver: afpacket
    burst_size: 32
    options:
      interface: eth1
      port: 9000
  arp:
    entries:
      - ip: 10.0.0.1
        mac: "02:00:00:00:00:01"
      - ip: 10.0.0.2
        mac: "02:00:00:00:00:02"
    fallback: multicast
    learn: true
    learn_ttl: 30s
  codec:
    mtu: 9000
    ttl: 32
    framing_byte_order: little
    verify_checksum: false
  queue:
    local: 10.0.0.1:9000
    peer: 10.0.0.2:9001
    wait_policy: yield
    ephemeral_port_start: 40000
  log:
    level: debug
  metrics:
    enabled: true
    listen: 127.0.0.1:9100
`)
	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "afpacket", cfg.NIC.Driver)
	assert.Equal(t, 32, cfg.NIC.BurstSize)
	assert.Equal(t, "eth1", cfg.NIC.Options["interface"])
	assert.EqualValues(t, 9000, cfg.NIC.Options["port"])

	entries, err := cfg.ARPEntries()
	require.NoError(t, err)
	assert.Equal(t, []arp.Entry{
		{IP: netip.MustParseAddr("10.0.0.1"), MAC: core.LinkAddr{0x02, 0, 0, 0, 0, 0x01}},
		{IP: netip.MustParseAddr("10.0.0.2"), MAC: core.LinkAddr{0x02, 0, 0, 0, 0, 0x02}},
	}, entries)

	arpOpts, err := cfg.ARPOptions()
	require.NoError(t, err)
	assert.Equal(t, core.Multicast, arpOpts.Fallback)
	assert.Equal(t, 30*time.Second, arpOpts.LearnTTL)

	codecOpts, err := cfg.CodecOptions()
	require.NoError(t, err)
	assert.Equal(t, 9000, codecOpts.MTU)
	assert.Equal(t, uint8(32), codecOpts.TTL)
	assert.Equal(t, binary.LittleEndian, codecOpts.FramingOrder)
	assert.False(t, codecOpts.VerifyChecksum)

	queueOpts, err := cfg.QueueOptions()
	require.NoError(t, err)
	assert.Equal(t, queue.Options{BurstSize: 32, EphemeralPortStart: 40000, WaitPolicy: queue.WaitYield}, queueOpts)

	local, ok, err := cfg.LocalAddr()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, netip.MustParseAddrPort("10.0.0.1:9000"), local)
	peer, ok, err := cfg.PeerAddr()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, netip.MustParseAddrPort("10.0.0.2:9001"), peer)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.Listen)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "bypass: {}\n"), "")
	require.NoError(t, err)

	assert.Equal(t, "channel", cfg.NIC.Driver)
	assert.Equal(t, 64, cfg.NIC.BurstSize)
	assert.Equal(t, "broadcast", cfg.ARP.Fallback)
	assert.False(t, cfg.ARP.Learn)
	assert.Equal(t, 1500, cfg.Codec.MTU)
	assert.Equal(t, 64, cfg.Codec.TTL)
	assert.Equal(t, "big", cfg.Codec.FramingByteOrder)
	assert.True(t, cfg.Codec.VerifyChecksum)
	assert.Equal(t, "spin", cfg.Queue.WaitPolicy)
	assert.Equal(t, 1024, cfg.Queue.EphemeralPortStart)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9091", cfg.Metrics.Listen)

	arpOpts, err := cfg.ARPOptions()
	require.NoError(t, err)
	assert.Equal(t, core.Broadcast, arpOpts.Fallback)
	assert.Zero(t, arpOpts.LearnTTL, "learning is opt-in")

	_, ok, err := cfg.LocalAddr()
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = cfg.PeerAddr()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, "channel", cfg.NIC.Driver)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"), "")
	require.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("BYPASS_CODEC_MTU", "4000")
	t.Setenv("BYPASS_QUEUE_WAIT_POLICY", "yield")
	t.Setenv("BYPASS_LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, "bypass:\n  codec:\n    mtu: 9000\n"), "")
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Codec.MTU)
	assert.Equal(t, "yield", cfg.Queue.WaitPolicy)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "custom.env")
	require.NoError(t, os.WriteFile(envFile, []byte("BYPASS_NIC_BURST_SIZE=16\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("BYPASS_NIC_BURST_SIZE") })

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.NIC.BurstSize)
}

func TestDotEnvNextToConfig(t *testing.T) {
	path := writeConfig(t, "bypass: {}\n")
	dotenv := filepath.Join(filepath.Dir(path), ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("BYPASS_QUEUE_PEER=10.0.0.9:7000\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("BYPASS_QUEUE_PEER") })

	cfg, err := Load(path, "")
	require.NoError(t, err)
	peer, ok, err := cfg.PeerAddr()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, netip.MustParseAddrPort("10.0.0.9:7000"), peer)
}

func TestMissingEnvFile(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), "nope.env"))
	require.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"log level", "bypass:\n  log:\n    level: loud\n"},
		{"fallback", "bypass:\n  arp:\n    fallback: anycast\n"},
		{"arp ip", "bypass:\n  arp:\n    entries:\n      - {ip: nope, mac: \"02:00:00:00:00:01\"}\n"},
		{"arp ipv6", "bypass:\n  arp:\n    entries:\n      - {ip: \"::1\", mac: \"02:00:00:00:00:01\"}\n"},
		{"arp mac", "bypass:\n  arp:\n    entries:\n      - {ip: 10.0.0.1, mac: zz}\n"},
		{"learn ttl", "bypass:\n  arp:\n    learn: true\n    learn_ttl: soon\n"},
		{"byte order", "bypass:\n  codec:\n    framing_byte_order: middle\n"},
		{"mtu", "bypass:\n  codec:\n    mtu: 20\n"},
		{"ttl", "bypass:\n  codec:\n    ttl: 300\n"},
		{"wait policy", "bypass:\n  queue:\n    wait_policy: sleep\n"},
		{"local", "bypass:\n  queue:\n    local: 10.0.0.1\n"},
		{"peer ipv6", "bypass:\n  queue:\n    peer: \"[::1]:9000\"\n"},
		{"port start", "bypass:\n  queue:\n    ephemeral_port_start: 70000\n"},
		{"empty driver", "bypass:\n  nic:\n    driver: \"\"\n"},
		{"sniffer sink", "bypass:\n  sniffer:\n    enabled: true\n"},
		{"log file", "bypass:\n  log:\n    file:\n      enabled: true\n      filename: \"\"\n"},
		{"metrics path", "bypass:\n  metrics:\n    enabled: true\n    path: metrics\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content), "")
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrConfigInvalid)
		})
	}
}

func TestValidateAppliesDefaults(t *testing.T) {
	cfg := &Config{NIC: NICConfig{Driver: "channel"}}
	require.NoError(t, cfg.ValidateAndApplyDefaults())

	assert.Equal(t, 64, cfg.NIC.BurstSize)
	assert.NotNil(t, cfg.NIC.Options)
	assert.Equal(t, "broadcast", cfg.ARP.Fallback)
	assert.Equal(t, "big", cfg.Codec.FramingByteOrder)
	assert.Equal(t, "spin", cfg.Queue.WaitPolicy)
	assert.Equal(t, 1024, cfg.Queue.EphemeralPortStart)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestYAMLRoundTrip(t *testing.T) {
	cfg, err := Load(writeConfig(t, "bypass:\n  queue:\n    peer: 10.0.0.2:9001\n"), "")
	require.NoError(t, err)

	out, err := cfg.YAML()
	require.NoError(t, err)

	var root configRoot
	require.NoError(t, yaml.Unmarshal(out, &root))
	assert.Equal(t, "10.0.0.2:9001", root.Bypass.Queue.Peer)
	assert.Equal(t, "channel", root.Bypass.NIC.Driver)
	assert.Equal(t, 1500, root.Bypass.Codec.MTU)
}
