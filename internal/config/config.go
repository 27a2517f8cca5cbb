// Package config loads the endpoint configuration.
//
// The YAML file uses `bypass:` as root key. Every key can be overridden from
// the environment with the BYPASS_ prefix, e.g. BYPASS_NIC_DRIVER or
// BYPASS_CODEC_MTU.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"firestige.xyz/bypass/internal/arp"
	"firestige.xyz/bypass/internal/codec"
	"firestige.xyz/bypass/internal/core"
	"firestige.xyz/bypass/internal/log"
	"firestige.xyz/bypass/internal/queue"
)

// Config is the root configuration.
type Config struct {
	NIC     NICConfig     `mapstructure:"nic" yaml:"nic"`
	ARP     ARPConfig     `mapstructure:"arp" yaml:"arp"`
	Codec   CodecConfig   `mapstructure:"codec" yaml:"codec"`
	Queue   QueueConfig   `mapstructure:"queue" yaml:"queue"`
	Sniffer SnifferConfig `mapstructure:"sniffer" yaml:"sniffer"`
	Log     log.Config    `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// ─── NIC ───

// NICConfig selects the frame driver.
type NICConfig struct {
	Driver    string         `mapstructure:"driver" yaml:"driver"`         // channel / afpacket / tap
	BurstSize int            `mapstructure:"burst_size" yaml:"burst_size"` // frames per receive burst
	Options   map[string]any `mapstructure:"options" yaml:"options"`       // passed to the driver factory
}

// ─── ARP ───

// ARPConfig configures the static address table.
type ARPConfig struct {
	Entries  []ARPEntry `mapstructure:"entries" yaml:"entries"`
	Fallback string     `mapstructure:"fallback" yaml:"fallback"`   // broadcast / multicast
	Learn    bool       `mapstructure:"learn" yaml:"learn"`         // remember pairs seen on inbound frames
	LearnTTL string     `mapstructure:"learn_ttl" yaml:"learn_ttl"` // e.g. "5m"
}

// ARPEntry is one static IPv4 to MAC pair.
type ARPEntry struct {
	IP  string `mapstructure:"ip" yaml:"ip"`
	MAC string `mapstructure:"mac" yaml:"mac"`
}

// ─── Codec ───

// CodecConfig configures frame construction and parsing.
type CodecConfig struct {
	MTU              int    `mapstructure:"mtu" yaml:"mtu"`
	TTL              int    `mapstructure:"ttl" yaml:"ttl"`
	FramingByteOrder string `mapstructure:"framing_byte_order" yaml:"framing_byte_order"` // big / little / native
	VerifyChecksum   bool   `mapstructure:"verify_checksum" yaml:"verify_checksum"`
}

// ─── Queue ───

// QueueConfig configures the endpoint.
type QueueConfig struct {
	Local              string `mapstructure:"local" yaml:"local"` // ip:port, empty binds on first use
	Peer               string `mapstructure:"peer" yaml:"peer"`   // ip:port, empty leaves the queue unconnected
	WaitPolicy         string `mapstructure:"wait_policy" yaml:"wait_policy"`
	EphemeralPortStart int    `mapstructure:"ephemeral_port_start" yaml:"ephemeral_port_start"`
}

// ─── Sniffer ───

// SnifferConfig wraps the driver with a frame recorder.
type SnifferConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	PcapFile  string `mapstructure:"pcap_file" yaml:"pcap_file"`
	LogFrames bool   `mapstructure:"log_frames" yaml:"log_frames"`
}

// ─── Metrics ───

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `bypass: ...`.
type configRoot struct {
	Bypass Config `mapstructure:"bypass" yaml:"bypass"`
}

// Load loads configuration from path. An empty path yields the defaults plus
// environment overrides.
//
// envFile names a dotenv file whose variables are added to the environment
// before overrides are read; variables already set win. When envFile is empty
// a .env next to the config file is used if present.
func Load(path, envFile string) (*Config, error) {
	if err := loadEnvFile(path, envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `bypass.` key prefix maps to BYPASS_ through the key replacer
	// (e.g., key "bypass.nic.driver" → env "BYPASS_NIC_DRIVER").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Bypass

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile(path, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
		return nil
	}
	if path == "" {
		return nil
	}
	candidate := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(candidate); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(candidate); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", candidate, err)
	}
	return nil
}

// setDefaults sets default values for configuration.
// All keys use "bypass." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// NIC defaults
	v.SetDefault("bypass.nic.driver", "channel")
	v.SetDefault("bypass.nic.burst_size", 64)
	v.SetDefault("bypass.nic.options", map[string]any{})

	// ARP defaults
	v.SetDefault("bypass.arp.fallback", "broadcast")
	v.SetDefault("bypass.arp.learn", false)
	v.SetDefault("bypass.arp.learn_ttl", "5m")

	// Codec defaults
	v.SetDefault("bypass.codec.mtu", codec.DefaultMTU)
	v.SetDefault("bypass.codec.ttl", codec.DefaultTTL)
	v.SetDefault("bypass.codec.framing_byte_order", "big")
	v.SetDefault("bypass.codec.verify_checksum", true)

	// Queue defaults
	v.SetDefault("bypass.queue.local", "")
	v.SetDefault("bypass.queue.peer", "")
	v.SetDefault("bypass.queue.wait_policy", "spin")
	v.SetDefault("bypass.queue.ephemeral_port_start", queue.DefaultEphemeralPortStart)

	// Sniffer defaults
	v.SetDefault("bypass.sniffer.enabled", false)
	v.SetDefault("bypass.sniffer.pcap_file", "")
	v.SetDefault("bypass.sniffer.log_frames", false)

	// Log defaults
	v.SetDefault("bypass.log.level", log.DefaultLevel)
	v.SetDefault("bypass.log.pattern", log.DefaultPattern)
	v.SetDefault("bypass.log.time", log.DefaultTime)
	v.SetDefault("bypass.log.file.enabled", false)
	v.SetDefault("bypass.log.file.filename", "/var/log/bypass/bypass.log")
	v.SetDefault("bypass.log.file.max_size", 100)
	v.SetDefault("bypass.log.file.max_backups", 5)
	v.SetDefault("bypass.log.file.max_age", 30)
	v.SetDefault("bypass.log.file.compress", true)

	// Metrics defaults
	v.SetDefault("bypass.metrics.enabled", false)
	v.SetDefault("bypass.metrics.listen", ":9091")
	v.SetDefault("bypass.metrics.path", "/metrics")
}

// ValidateAndApplyDefaults validates configuration and fills values left empty
// by a config built without Load.
func (cfg *Config) ValidateAndApplyDefaults() error {
	// ── NIC ──
	if cfg.NIC.Driver == "" {
		return invalid("nic.driver is required")
	}
	if cfg.NIC.BurstSize <= 0 {
		cfg.NIC.BurstSize = 64
	}
	if cfg.NIC.Options == nil {
		cfg.NIC.Options = map[string]any{}
	}

	// ── ARP ──
	if cfg.ARP.Fallback == "" {
		cfg.ARP.Fallback = "broadcast"
	}
	if _, err := cfg.ARPOptions(); err != nil {
		return err
	}
	if _, err := cfg.ARPEntries(); err != nil {
		return err
	}

	// ── Codec ──
	if cfg.Codec.FramingByteOrder == "" {
		cfg.Codec.FramingByteOrder = "big"
	}
	opts, err := cfg.CodecOptions()
	if err != nil {
		return err
	}
	if _, err := codec.New(opts); err != nil {
		return err
	}

	// ── Queue ──
	if cfg.Queue.WaitPolicy == "" {
		cfg.Queue.WaitPolicy = queue.WaitSpin.String()
	}
	if cfg.Queue.EphemeralPortStart == 0 {
		cfg.Queue.EphemeralPortStart = queue.DefaultEphemeralPortStart
	}
	if _, err := cfg.QueueOptions(); err != nil {
		return err
	}
	if _, _, err := cfg.LocalAddr(); err != nil {
		return err
	}
	if _, _, err := cfg.PeerAddr(); err != nil {
		return err
	}

	// ── Sniffer ──
	if cfg.Sniffer.Enabled && !cfg.Sniffer.LogFrames && cfg.Sniffer.PcapFile == "" {
		return invalid("sniffer.enabled requires sniffer.pcap_file or sniffer.log_frames")
	}

	// ── Log ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if cfg.Log.Level == "" {
		cfg.Log.Level = log.DefaultLevel
	}
	if !validLevels[cfg.Log.Level] {
		return invalid("invalid log level: %s (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Filename == "" {
		return invalid("log.file.filename is required when log.file.enabled=true")
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Listen == "" {
			return invalid("metrics.listen is required when metrics.enabled=true")
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return invalid("metrics.path must start with '/': %q", cfg.Metrics.Path)
		}
	}
	return nil
}

// ARPEntries parses the static table entries.
func (cfg *Config) ARPEntries() ([]arp.Entry, error) {
	entries := make([]arp.Entry, 0, len(cfg.ARP.Entries))
	for i, e := range cfg.ARP.Entries {
		ip, err := netip.ParseAddr(e.IP)
		if err != nil {
			return nil, invalid("arp.entries[%d].ip: %v", i, err)
		}
		if !ip.Is4() {
			return nil, invalid("arp.entries[%d].ip: %s is not IPv4", i, e.IP)
		}
		mac, err := core.ParseLinkAddr(e.MAC)
		if err != nil {
			return nil, invalid("arp.entries[%d].mac: %v", i, err)
		}
		entries = append(entries, arp.Entry{IP: ip, MAC: mac})
	}
	return entries, nil
}

// ARPOptions converts the fallback and learning settings.
func (cfg *Config) ARPOptions() (arp.Options, error) {
	var opts arp.Options
	switch strings.ToLower(cfg.ARP.Fallback) {
	case "", "broadcast":
		opts.Fallback = core.Broadcast
	case "multicast":
		opts.Fallback = core.Multicast
	default:
		return opts, invalid("unknown arp.fallback %q (must be broadcast/multicast)", cfg.ARP.Fallback)
	}
	if cfg.ARP.Learn {
		ttl, err := time.ParseDuration(cfg.ARP.LearnTTL)
		if err != nil {
			return opts, invalid("arp.learn_ttl: %v", err)
		}
		if ttl <= 0 {
			return opts, invalid("arp.learn_ttl must be positive when arp.learn=true")
		}
		opts.LearnTTL = ttl
	}
	return opts, nil
}

// CodecOptions converts the codec section.
func (cfg *Config) CodecOptions() (codec.Options, error) {
	order, err := codec.ParseByteOrder(cfg.Codec.FramingByteOrder)
	if err != nil {
		return codec.Options{}, err
	}
	if cfg.Codec.TTL < 0 || cfg.Codec.TTL > 255 {
		return codec.Options{}, invalid("codec.ttl %d out of range", cfg.Codec.TTL)
	}
	return codec.Options{
		MTU:            cfg.Codec.MTU,
		TTL:            uint8(cfg.Codec.TTL),
		FramingOrder:   order,
		VerifyChecksum: cfg.Codec.VerifyChecksum,
	}, nil
}

// QueueOptions converts the queue section and nic.burst_size.
func (cfg *Config) QueueOptions() (queue.Options, error) {
	policy, err := queue.ParseWaitPolicy(cfg.Queue.WaitPolicy)
	if err != nil {
		return queue.Options{}, err
	}
	if cfg.Queue.EphemeralPortStart < 0 || cfg.Queue.EphemeralPortStart > 0xFFFF {
		return queue.Options{}, invalid("queue.ephemeral_port_start %d out of range", cfg.Queue.EphemeralPortStart)
	}
	return queue.Options{
		BurstSize:          cfg.NIC.BurstSize,
		EphemeralPortStart: uint16(cfg.Queue.EphemeralPortStart),
		WaitPolicy:         policy,
	}, nil
}

// LocalAddr returns queue.local. ok is false when it is not set.
func (cfg *Config) LocalAddr() (addr netip.AddrPort, ok bool, err error) {
	return parseEndpoint("queue.local", cfg.Queue.Local)
}

// PeerAddr returns queue.peer. ok is false when it is not set.
func (cfg *Config) PeerAddr() (addr netip.AddrPort, ok bool, err error) {
	return parseEndpoint("queue.peer", cfg.Queue.Peer)
}

func parseEndpoint(key, s string) (netip.AddrPort, bool, error) {
	if s == "" {
		return netip.AddrPort{}, false, nil
	}
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return netip.AddrPort{}, false, invalid("%s: %v", key, err)
	}
	if !ap.Addr().Is4() {
		return netip.AddrPort{}, false, invalid("%s: %s is not IPv4", key, s)
	}
	return ap, true, nil
}

// YAML renders the configuration under the `bypass:` root key.
func (cfg *Config) YAML() ([]byte, error) {
	return yaml.Marshal(configRoot{Bypass: *cfg})
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), core.ErrConfigInvalid)
}
