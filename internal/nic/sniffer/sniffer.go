// Package sniffer wraps a driver to log and record the frames crossing it.
package sniffer

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/bypass/internal/core"
	"firestige.xyz/bypass/internal/log"
	"firestige.xyz/bypass/internal/nic"
)

const snapLen = 65535

// Options selects what the sniffer does with each frame.
type Options struct {
	LogFrames bool   // debug-log a one-line summary
	PcapFile  string // append frames to this pcap file when set
}

// Sniffer is a nic.Driver that observes another driver's traffic.
type Sniffer struct {
	inner nic.Driver
	opts  Options
	log   log.Logger

	file *os.File
	buf  *bufio.Writer
	pcap *pcapgo.Writer
}

var _ nic.Driver = (*Sniffer)(nil)

// Wrap decorates inner. The sniffer owns inner from then on and closes it.
func Wrap(inner nic.Driver, opts Options) (*Sniffer, error) {
	s := &Sniffer{
		inner: inner,
		opts:  opts,
		log:   log.GetLogger().WithField("component", "sniffer"),
	}
	if opts.PcapFile != "" {
		f, err := os.Create(opts.PcapFile)
		if err != nil {
			return nil, fmt.Errorf("sniffer: %w", err)
		}
		s.file = f
		s.buf = bufio.NewWriter(f)
		s.pcap = pcapgo.NewWriter(s.buf)
		if err := s.pcap.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
			f.Close()
			return nil, fmt.Errorf("sniffer: write pcap header: %w", err)
		}
	}
	return s, nil
}

// TransmitBurst records the frames the inner driver accepted.
func (s *Sniffer) TransmitBurst(frames [][]byte) int {
	n := s.inner.TransmitBurst(frames)
	for _, f := range frames[:n] {
		s.observe("tx", f)
	}
	return n
}

// ReceiveBurst records every received frame.
func (s *Sniffer) ReceiveBurst(max int) [][]byte {
	frames := s.inner.ReceiveBurst(max)
	for _, f := range frames {
		s.observe("rx", f)
	}
	return frames
}

func (s *Sniffer) LinkAddr() core.LinkAddr {
	return s.inner.LinkAddr()
}

// Close flushes the capture file and closes the inner driver.
func (s *Sniffer) Close() error {
	var errs []string
	if s.file != nil {
		if err := s.buf.Flush(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := s.file.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		s.file = nil
	}
	if err := s.inner.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("sniffer: close: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (s *Sniffer) observe(dir string, frame []byte) {
	if s.opts.LogFrames && s.log.IsDebugEnabled() {
		s.log.WithField("dir", dir).WithField("len", len(frame)).Debug(Summary(frame))
	}
	if s.pcap != nil {
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Now(),
			CaptureLength: len(frame),
			Length:        len(frame),
		}
		if err := s.pcap.WritePacket(ci, frame); err != nil {
			s.log.WithError(err).Warn("pcap write failed")
		}
	}
}

// Summary describes a frame in one line, for example
// "Ethernet/IPv4/UDP/Payload 10.0.0.1->10.0.0.2 9000->9001".
func Summary(frame []byte) string {
	packet := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.NoCopy)

	names := make([]string, 0, 4)
	for _, l := range packet.Layers() {
		names = append(names, l.LayerType().String())
	}
	parts := []string{strings.Join(names, "/")}

	if net := packet.NetworkLayer(); net != nil {
		parts = append(parts, net.NetworkFlow().String())
	}
	if udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		// numeric ports; the flow string would add IANA service names
		parts = append(parts, fmt.Sprintf("%d->%d", udp.SrcPort, udp.DstPort))
	} else if transport := packet.TransportLayer(); transport != nil {
		parts = append(parts, transport.TransportFlow().String())
	}
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		parts = append(parts, "error: "+errLayer.Error().Error())
	}
	return strings.Join(parts, " ")
}
