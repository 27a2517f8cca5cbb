// Package codec serializes scatter-gather messages into Ethernet/IPv4/UDP frames
// and splits received frames back into their original segments.
//
// Frame layout (from outside in):
//
//	ethernet header   14 bytes
//	ipv4 header       20 bytes, no options
//	udp header         8 bytes, checksum 0
//	segment count      1 word
//	segment[i] length  1 word
//	segment[i] bytes   length bytes, no padding
//	...
//
// A word is 8 bytes in the configured framing byte order.
package codec

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strings"

	"firestige.xyz/bypass/internal/core"
)

const (
	EthernetHeaderLen = 14
	IPv4HeaderLen     = 20
	UDPHeaderLen      = 8
	HeadersLen        = EthernetHeaderLen + IPv4HeaderLen + UDPHeaderLen

	// FramingWordLen is the width of the segment count and length fields.
	FramingWordLen = 8

	DefaultMTU = 1500
	DefaultTTL = 64

	etherTypeIPv4 = 0x0800
	protocolUDP   = 17
	ipVersionIHL  = 0x45 // version 4, five 32-bit words
)

// Options configures a Codec.
type Options struct {
	MTU            int              // IPv4 packet size limit, default 1500
	TTL            uint8            // default 64
	FramingOrder   binary.ByteOrder // default big endian
	VerifyChecksum bool             // drop inbound frames with a bad IPv4 header checksum
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		MTU:            DefaultMTU,
		TTL:            DefaultTTL,
		FramingOrder:   binary.BigEndian,
		VerifyChecksum: true,
	}
}

// Codec builds and parses frames. It holds no per-frame state and is safe for
// concurrent use.
type Codec struct {
	mtu    int
	ttl    uint8
	order  binary.ByteOrder
	verify bool
}

// New creates a codec, filling zero options with defaults.
func New(opts Options) (*Codec, error) {
	def := DefaultOptions()
	if opts.MTU == 0 {
		opts.MTU = def.MTU
	}
	if opts.TTL == 0 {
		opts.TTL = def.TTL
	}
	if opts.FramingOrder == nil {
		opts.FramingOrder = def.FramingOrder
	}
	if opts.MTU < IPv4HeaderLen+UDPHeaderLen+FramingWordLen || opts.MTU > 0xFFFF {
		return nil, fmt.Errorf("codec: mtu %d out of range: %w", opts.MTU, core.ErrConfigInvalid)
	}
	return &Codec{
		mtu:    opts.MTU,
		ttl:    opts.TTL,
		order:  opts.FramingOrder,
		verify: opts.VerifyChecksum,
	}, nil
}

// MaxPayload returns the largest framing block (count, lengths and bytes) one
// frame can carry.
func (c *Codec) MaxPayload() int {
	return c.mtu - IPv4HeaderLen - UDPHeaderLen
}

// FramingLen returns the number of framing bytes sga occupies on the wire.
func FramingLen(sga *core.SGA) int {
	return FramingWordLen + sga.NumSegments()*FramingWordLen + sga.TotalLen()
}

// FrameLen returns the full frame length for sga.
func FrameLen(sga *core.SGA) int {
	return HeadersLen + FramingLen(sga)
}

// Route carries the addressing of one outbound frame.
type Route struct {
	Src    netip.AddrPort
	Dst    netip.AddrPort
	SrcMAC core.LinkAddr
	DstMAC core.LinkAddr
}

// Datagram is a decoded inbound frame.
type Datagram struct {
	Ethernet core.EthernetHeader
	IP       core.IPHeader
	UDP      core.UDPHeader
	SGA      *core.SGA
}

// Peer returns the sender's network address.
func (d *Datagram) Peer() netip.AddrPort {
	return netip.AddrPortFrom(d.IP.SrcIP, d.UDP.SrcPort)
}

// ParseByteOrder maps "big", "little" and "native" to a byte order.
func ParseByteOrder(s string) (binary.ByteOrder, error) {
	switch strings.ToLower(s) {
	case "", "big", "network":
		return binary.BigEndian, nil
	case "little":
		return binary.LittleEndian, nil
	case "native", "host":
		return binary.NativeEndian, nil
	default:
		return nil, fmt.Errorf("unknown framing byte order %q (must be big/little/native): %w", s, core.ErrConfigInvalid)
	}
}
