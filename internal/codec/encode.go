package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/bytedance/gopkg/lang/mcache"

	"firestige.xyz/bypass/internal/checksum"
	"firestige.xyz/bypass/internal/core"
)

// Encode serializes sga into one frame addressed by r.
//
// The frame is taken from the shared buffer cache and must be handed back with
// Release once the driver no longer needs it. A message that does not fit in a
// single frame is rejected with core.ErrOversizeMessage before any buffer is
// allocated; messages are never truncated.
func (c *Codec) Encode(sga *core.SGA, r Route) ([]byte, error) {
	if sga == nil {
		sga = &core.SGA{}
	}
	if !r.Src.Addr().Is4() || !r.Dst.Addr().Is4() {
		return nil, core.ErrAddressFamily
	}
	framing := FramingLen(sga)
	if framing > c.MaxPayload() {
		return nil, fmt.Errorf("%d framing bytes, limit %d: %w", framing, c.MaxPayload(), core.ErrOversizeMessage)
	}

	frame := mcache.Malloc(HeadersLen + framing)
	c.putHeaders(frame, r, framing)
	c.putFraming(frame[HeadersLen:], sga)
	return frame, nil
}

// Release returns a frame produced by Encode to the buffer cache.
func Release(frame []byte) {
	if frame != nil {
		mcache.Free(frame)
	}
}

func (c *Codec) putHeaders(frame []byte, r Route, framing int) {
	// Ethernet header
	eth := frame[:EthernetHeaderLen]
	copy(eth[0:6], r.DstMAC[:])
	copy(eth[6:12], r.SrcMAC[:])
	binary.BigEndian.PutUint16(eth[12:14], etherTypeIPv4)

	// IPv4 header
	ip := frame[EthernetHeaderLen : EthernetHeaderLen+IPv4HeaderLen]
	ip[0] = ipVersionIHL
	ip[1] = 0                                                                        // TOS
	binary.BigEndian.PutUint16(ip[2:4], uint16(IPv4HeaderLen+UDPHeaderLen+framing)) // Total Length
	binary.BigEndian.PutUint16(ip[4:6], 0)                                           // Identification
	binary.BigEndian.PutUint16(ip[6:8], 0)                                           // Flags, Fragment Offset
	ip[8] = c.ttl
	ip[9] = protocolUDP
	binary.BigEndian.PutUint16(ip[10:12], 0) // Checksum, zero while summing
	src := r.Src.Addr().As4()
	dst := r.Dst.Addr().As4()
	copy(ip[12:16], src[:])
	copy(ip[16:20], dst[:])
	binary.BigEndian.PutUint16(ip[10:12], checksum.Checksum(ip))

	// UDP header
	udp := frame[EthernetHeaderLen+IPv4HeaderLen : HeadersLen]
	binary.BigEndian.PutUint16(udp[0:2], r.Src.Port())
	binary.BigEndian.PutUint16(udp[2:4], r.Dst.Port())
	binary.BigEndian.PutUint16(udp[4:6], uint16(UDPHeaderLen+framing))
	binary.BigEndian.PutUint16(udp[6:8], 0) // no checksum
}

func (c *Codec) putFraming(buf []byte, sga *core.SGA) {
	c.order.PutUint64(buf[:FramingWordLen], uint64(sga.NumSegments()))
	off := FramingWordLen
	for _, seg := range sga.Segments {
		c.order.PutUint64(buf[off:off+FramingWordLen], uint64(len(seg)))
		off += FramingWordLen
		off += copy(buf[off:], seg)
	}
}
