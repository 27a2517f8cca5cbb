// Package channel implements in-memory drivers: a linked pair of ports, or a
// single port whose transmissions loop back to its own receive side.
//
// Registered as "channel". Opened from configuration it is a loopback port:
//
//	nic:
//	  driver: channel
//	  options:
//	    mac: 02:00:00:00:00:01
//	    capacity: 1024
package channel

import (
	"sync/atomic"

	"firestige.xyz/bypass/internal/core"
	"firestige.xyz/bypass/internal/nic"
)

const (
	driverName      = "channel"
	defaultCapacity = 1024
)

// DefaultMAC is the loopback port's address when none is configured.
var DefaultMAC = core.LinkAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}

func init() {
	nic.Register(driverName, open)
}

// Options configures a loopback port opened through the registry.
type Options struct {
	MAC      string `mapstructure:"mac"`
	Capacity int    `mapstructure:"capacity"`
}

func open(opts map[string]any) (nic.Driver, error) {
	o := Options{Capacity: defaultCapacity}
	if err := nic.DecodeOptions(opts, &o); err != nil {
		return nil, err
	}
	mac := DefaultMAC
	if o.MAC != "" {
		m, err := core.ParseLinkAddr(o.MAC)
		if err != nil {
			return nil, err
		}
		mac = m
	}
	return Loopback(mac, o.Capacity), nil
}

// Port is one end of an in-memory link. Each port buffers at most capacity
// inbound frames; a transmit to a full peer is refused, not blocked.
type Port struct {
	mac    core.LinkAddr
	rx     chan []byte
	tx     chan []byte // peer's rx
	closed atomic.Bool
}

// Pair returns two ports wired to each other.
func Pair(macA, macB core.LinkAddr, capacity int) (*Port, *Port) {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	a := &Port{mac: macA, rx: make(chan []byte, capacity)}
	b := &Port{mac: macB, rx: make(chan []byte, capacity)}
	a.tx, b.tx = b.rx, a.rx
	return a, b
}

// Loopback returns a port that receives its own transmissions.
func Loopback(mac core.LinkAddr, capacity int) *Port {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	p := &Port{mac: mac, rx: make(chan []byte, capacity)}
	p.tx = p.rx
	return p
}

// TransmitBurst copies frames into the peer's receive buffer until it is full.
func (p *Port) TransmitBurst(frames [][]byte) int {
	if p.closed.Load() {
		return 0
	}
	for i, f := range frames {
		select {
		case p.tx <- append([]byte(nil), f...):
		default:
			return i
		}
	}
	return len(frames)
}

// ReceiveBurst drains up to max buffered frames.
func (p *Port) ReceiveBurst(max int) [][]byte {
	if p.closed.Load() || max <= 0 {
		return nil
	}
	var frames [][]byte
	for len(frames) < max {
		select {
		case f := <-p.rx:
			frames = append(frames, f)
		default:
			return frames
		}
	}
	return frames
}

// Pending returns the number of frames waiting to be received.
func (p *Port) Pending() int {
	return len(p.rx)
}

func (p *Port) LinkAddr() core.LinkAddr {
	return p.mac
}

// Close stops the port; further bursts move nothing. The peer is unaffected.
func (p *Port) Close() error {
	p.closed.Store(true)
	return nil
}
