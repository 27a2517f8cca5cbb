// Package core defines core types with zero external dependencies.
package core

import (
	"encoding/hex"
	"fmt"
	"net"
	"net/netip"
)

// LinkAddr is a 6-byte Ethernet hardware address.
type LinkAddr [6]byte

var (
	// Broadcast is ff:ff:ff:ff:ff:ff.
	Broadcast = LinkAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	// Multicast is the 01:1b:19:00:00:00 group address (IEEE 1588 PTP).
	Multicast = LinkAddr{0x01, 0x1b, 0x19, 0x00, 0x00, 0x00}
)

// ParseLinkAddr parses a colon or dash separated MAC-48 address.
func ParseLinkAddr(s string) (LinkAddr, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return LinkAddr{}, err
	}
	if len(hw) != 6 {
		return LinkAddr{}, fmt.Errorf("link address %q is not MAC-48", s)
	}
	var a LinkAddr
	copy(a[:], hw)
	return a, nil
}

// LinkAddrFromSlice converts a hardware address slice, reporting false if it is not 6 bytes.
func LinkAddrFromSlice(b []byte) (LinkAddr, bool) {
	var a LinkAddr
	if len(b) != len(a) {
		return a, false
	}
	copy(a[:], b)
	return a, true
}

func (a LinkAddr) String() string {
	buf := make([]byte, 0, 17)
	for i, b := range a {
		if i > 0 {
			buf = append(buf, ':')
		}
		buf = hex.AppendEncode(buf, []byte{b})
	}
	return string(buf)
}

// IsZero reports whether a is 00:00:00:00:00:00.
func (a LinkAddr) IsZero() bool {
	return a == LinkAddr{}
}

// EthernetHeader represents the L2 Ethernet II header.
type EthernetHeader struct {
	DstMAC    LinkAddr
	SrcMAC    LinkAddr
	EtherType uint16 // 0x0800=IPv4
}

// IPHeader represents the L3 IPv4 header.
type IPHeader struct {
	Version  uint8
	IHL      uint8 // header length in 32-bit words
	TotalLen uint16
	TTL      uint8
	Protocol uint8 // UDP=17
	Checksum uint16
	SrcIP    netip.Addr
	DstIP    netip.Addr
}

// HeaderLen returns the header length in bytes.
func (h IPHeader) HeaderLen() int {
	return int(h.IHL) * 4
}

// UDPHeader represents the L4 UDP header.
type UDPHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Length   uint16
	Checksum uint16
}
