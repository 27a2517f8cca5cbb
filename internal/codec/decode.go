package codec

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/bytedance/gopkg/lang/dirtmake"

	"firestige.xyz/bypass/internal/checksum"
	"firestige.xyz/bypass/internal/core"
)

// Decode parses one inbound frame.
//
// When bound is valid, only frames whose IPv4 destination and UDP destination
// port both match it are accepted; an unspecified bound address matches any
// destination address. Frames that are not IPv4/UDP or not addressed
// to bound fail with core.ErrNotForEndpoint; frames whose headers or framing are
// inconsistent with their length fail with core.ErrMalformedFrame. Segment bytes
// are copied into fresh buffers owned by the caller, so frame may be reused as
// soon as Decode returns.
func (c *Codec) Decode(frame []byte, bound netip.AddrPort) (*Datagram, error) {
	d := &Datagram{}

	eth, rest, err := decodeEthernet(frame)
	if err != nil {
		return nil, err
	}
	if eth.EtherType != etherTypeIPv4 {
		return nil, core.ErrNotForEndpoint
	}
	d.Ethernet = eth

	ip, rest, err := c.decodeIPv4(rest)
	if err != nil {
		return nil, err
	}
	if ip.Protocol != protocolUDP {
		return nil, core.ErrNotForEndpoint
	}
	if bound.IsValid() && !bound.Addr().IsUnspecified() && ip.DstIP != bound.Addr() {
		return nil, core.ErrNotForEndpoint
	}
	d.IP = ip

	udp, rest, err := decodeUDP(rest)
	if err != nil {
		return nil, err
	}
	if bound.IsValid() && udp.DstPort != bound.Port() {
		return nil, core.ErrNotForEndpoint
	}
	d.UDP = udp

	sga, err := c.decodeFraming(rest)
	if err != nil {
		return nil, err
	}
	d.SGA = sga
	return d, nil
}

// decodeEthernet decodes the Ethernet II header.
// Returns the header and remaining payload.
func decodeEthernet(data []byte) (core.EthernetHeader, []byte, error) {
	if len(data) < EthernetHeaderLen {
		return core.EthernetHeader{}, nil, fmt.Errorf("%d byte frame: %w", len(data), core.ErrMalformedFrame)
	}

	eth := core.EthernetHeader{}

	// Destination MAC (6 bytes)
	copy(eth.DstMAC[:], data[0:6])

	// Source MAC (6 bytes)
	copy(eth.SrcMAC[:], data[6:12])

	// EtherType (2 bytes)
	eth.EtherType = binary.BigEndian.Uint16(data[12:14])

	return eth, data[EthernetHeaderLen:], nil
}

// decodeIPv4 decodes the IPv4 header, skipping options.
// The returned payload is bounded by Total Length, which drops Ethernet padding.
func (c *Codec) decodeIPv4(data []byte) (core.IPHeader, []byte, error) {
	if len(data) < IPv4HeaderLen {
		return core.IPHeader{}, nil, fmt.Errorf("truncated ipv4 header: %w", core.ErrMalformedFrame)
	}

	ip := core.IPHeader{
		Version: data[0] >> 4,
		IHL:     data[0] & 0x0F,
	}
	if ip.Version != 4 {
		return ip, nil, core.ErrNotForEndpoint
	}

	headerLen := ip.HeaderLen()
	if headerLen < IPv4HeaderLen || len(data) < headerLen {
		return ip, nil, fmt.Errorf("ipv4 header length %d: %w", headerLen, core.ErrMalformedFrame)
	}

	// Total Length (2 bytes at offset 2)
	ip.TotalLen = binary.BigEndian.Uint16(data[2:4])
	if int(ip.TotalLen) < headerLen || int(ip.TotalLen) > len(data) {
		return ip, nil, fmt.Errorf("ipv4 total length %d with %d bytes captured: %w", ip.TotalLen, len(data), core.ErrMalformedFrame)
	}

	// TTL (1 byte at offset 8)
	ip.TTL = data[8]

	// Protocol (1 byte at offset 9)
	ip.Protocol = data[9]

	// Header Checksum (2 bytes at offset 10)
	ip.Checksum = binary.BigEndian.Uint16(data[10:12])
	if c.verify && checksum.Checksum(data[:headerLen]) != 0 {
		return ip, nil, fmt.Errorf("ipv4 header checksum %#04x: %w", ip.Checksum, core.ErrMalformedFrame)
	}

	// Source IP (4 bytes at offset 12)
	ip.SrcIP = netip.AddrFrom4([4]byte(data[12:16]))

	// Destination IP (4 bytes at offset 16)
	ip.DstIP = netip.AddrFrom4([4]byte(data[16:20]))

	return ip, data[headerLen:ip.TotalLen], nil
}

// decodeUDP decodes the UDP header.
// Length and Checksum are recorded but not enforced; the framing is self-delimiting.
func decodeUDP(data []byte) (core.UDPHeader, []byte, error) {
	if len(data) < UDPHeaderLen {
		return core.UDPHeader{}, nil, fmt.Errorf("truncated udp header: %w", core.ErrMalformedFrame)
	}

	udp := core.UDPHeader{
		SrcPort:  binary.BigEndian.Uint16(data[0:2]),
		DstPort:  binary.BigEndian.Uint16(data[2:4]),
		Length:   binary.BigEndian.Uint16(data[4:6]),
		Checksum: binary.BigEndian.Uint16(data[6:8]),
	}

	return udp, data[UDPHeaderLen:], nil
}

// decodeFraming splits the application framing back into segments.
func (c *Codec) decodeFraming(data []byte) (*core.SGA, error) {
	if len(data) < FramingWordLen {
		return nil, fmt.Errorf("missing segment count: %w", core.ErrMalformedFrame)
	}
	count := c.order.Uint64(data[:FramingWordLen])
	data = data[FramingWordLen:]

	// every segment needs at least its length word
	if count > uint64(len(data)/FramingWordLen) {
		return nil, fmt.Errorf("segment count %d exceeds %d remaining bytes: %w", count, len(data), core.ErrMalformedFrame)
	}

	sga := &core.SGA{Segments: make([][]byte, 0, int(count))}
	for i := uint64(0); i < count; i++ {
		if len(data) < FramingWordLen {
			return nil, fmt.Errorf("segment %d: missing length: %w", i, core.ErrMalformedFrame)
		}
		n := c.order.Uint64(data[:FramingWordLen])
		data = data[FramingWordLen:]
		if n > uint64(len(data)) {
			return nil, fmt.Errorf("segment %d: length %d exceeds %d remaining bytes: %w", i, n, len(data), core.ErrMalformedFrame)
		}
		seg := dirtmake.Bytes(int(n), int(n))
		copy(seg, data[:n])
		sga.Segments = append(sga.Segments, seg)
		data = data[n:]
	}
	if len(data) != 0 {
		return nil, fmt.Errorf("%d bytes after last segment: %w", len(data), core.ErrMalformedFrame)
	}
	return sga, nil
}
