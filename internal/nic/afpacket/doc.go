// Package afpacket implements a driver over a Linux AF_PACKET TPACKET_V3 ring.
//
// Registered as "afpacket" on Linux:
//
//	nic:
//	  driver: afpacket
//	  options:
//	    interface: eth0
//	    buffer_size_mb: 8
//	    port: 9000          # kernel filter: IPv4/UDP to this port
//	    address: 10.0.0.1   # optional: and to this address
//	    bpf_filter: ""      # pcap expression, replaces the built-in filter
//
// Reads never block: the ring is polled with a zero timeout and an empty ring
// ends the burst.
package afpacket

import (
	"time"
)

const (
	driverName = "afpacket"

	defaultSnapLen      = 2048
	defaultBufferSizeMB = 8
	defaultBlockTimeout = time.Millisecond
)

// Options is the `nic.options` map of the afpacket driver.
type Options struct {
	Interface    string        `mapstructure:"interface"`      // required
	SnapLen      int           `mapstructure:"snap_len"`       // optional, default 2048
	BufferSizeMB int           `mapstructure:"buffer_size_mb"` // optional, default 8
	BlockTimeout time.Duration `mapstructure:"block_timeout"`  // optional, default 1ms
	Port         uint16        `mapstructure:"port"`           // optional, 0 accepts every UDP port
	Address      string        `mapstructure:"address"`        // optional IPv4 destination
	BPFFilter    string        `mapstructure:"bpf_filter"`     // optional pcap expression
}

func defaultOptions() Options {
	return Options{
		SnapLen:      defaultSnapLen,
		BufferSizeMB: defaultBufferSizeMB,
		BlockTimeout: defaultBlockTimeout,
	}
}
