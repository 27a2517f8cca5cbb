//go:build linux

package afpacket

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"

	"github.com/google/gopacket/afpacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"

	"firestige.xyz/bypass/internal/core"
	"firestige.xyz/bypass/internal/log"
	"firestige.xyz/bypass/internal/nic"
)

func init() {
	nic.Register(driverName, open)
}

// Driver is a TPACKET_V3 socket bound to one interface.
type Driver struct {
	handle *afpacket.TPacket
	iface  string
	mac    core.LinkAddr
	log    log.Logger
}

func open(opts map[string]any) (nic.Driver, error) {
	o := defaultOptions()
	if err := nic.DecodeOptions(opts, &o); err != nil {
		return nil, err
	}
	return New(o)
}

// New opens the interface named in o.
func New(o Options) (*Driver, error) {
	if o.Interface == "" {
		return nil, fmt.Errorf("afpacket: interface is required: %w", core.ErrConfigInvalid)
	}

	ifi, err := net.InterfaceByName(o.Interface)
	if err != nil {
		return nil, fmt.Errorf("afpacket: %w", err)
	}
	mac, ok := core.LinkAddrFromSlice(ifi.HardwareAddr)
	if !ok {
		return nil, fmt.Errorf("afpacket: interface %s has no ethernet address", o.Interface)
	}

	frameSize, blockSize, numBlocks, err := recomputeSize(o.BufferSizeMB, o.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, fmt.Errorf("afpacket: %w", err)
	}

	handle, err := afpacket.NewTPacket(
		afpacket.OptInterface(o.Interface),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptBlockTimeout(o.BlockTimeout),
		afpacket.OptPollTimeout(0),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, fmt.Errorf("afpacket: failed to create TPacket handle on %s: %w", o.Interface, err)
	}

	d := &Driver{
		handle: handle,
		iface:  o.Interface,
		mac:    mac,
		log:    log.GetLogger().WithField("driver", driverName).WithField("interface", o.Interface),
	}
	if err := d.applyFilter(o, frameSize); err != nil {
		handle.Close()
		return nil, err
	}

	d.log.WithFields(map[string]interface{}{
		"mac":        mac.String(),
		"frame_size": frameSize,
		"block_size": blockSize,
		"num_blocks": numBlocks,
	}).Info("afpacket driver opened")
	return d, nil
}

// applyFilter installs the user expression when set, else the built-in
// IPv4/UDP program when a port or address is configured.
func (d *Driver) applyFilter(o Options, snapLen int) error {
	var raw []bpf.RawInstruction
	switch {
	case o.BPFFilter != "":
		insns, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, snapLen, o.BPFFilter)
		if err != nil {
			return fmt.Errorf("afpacket: failed to compile BPF filter %q: %w", o.BPFFilter, err)
		}
		// pcap.BPFInstruction and bpf.RawInstruction share a layout: Code->Op, Jt, Jf, K
		raw = make([]bpf.RawInstruction, len(insns))
		for i, insn := range insns {
			raw[i] = bpf.RawInstruction{Op: insn.Code, Jt: insn.Jt, Jf: insn.Jf, K: insn.K}
		}
	case o.Port != 0 || o.Address != "":
		var dst netip.Addr
		if o.Address != "" {
			a, err := netip.ParseAddr(o.Address)
			if err != nil {
				return fmt.Errorf("afpacket: filter address: %v: %w", err, core.ErrConfigInvalid)
			}
			dst = a
		}
		var err error
		if raw, err = assembleUDPFilter(dst, o.Port, snapLen); err != nil {
			return fmt.Errorf("afpacket: %w", err)
		}
	default:
		return nil
	}

	if err := d.handle.SetBPF(raw); err != nil {
		return fmt.Errorf("afpacket: failed to set BPF: %w", err)
	}
	d.log.WithField("instructions", len(raw)).Debug("BPF filter applied")
	return nil
}

// TransmitBurst writes frames until the socket refuses one.
func (d *Driver) TransmitBurst(frames [][]byte) int {
	for i, f := range frames {
		if err := d.handle.WritePacketData(f); err != nil {
			d.log.WithError(err).Debug("transmit refused")
			return i
		}
	}
	return len(frames)
}

// ReceiveBurst copies up to max frames out of the ring, stopping at the first
// empty poll.
func (d *Driver) ReceiveBurst(max int) [][]byte {
	var frames [][]byte
	for len(frames) < max {
		data, _, err := d.handle.ReadPacketData()
		if err != nil {
			if !errors.Is(err, afpacket.ErrTimeout) {
				d.log.WithError(err).Debug("receive failed")
			}
			break
		}
		frames = append(frames, data)
	}
	return frames
}

func (d *Driver) LinkAddr() core.LinkAddr {
	return d.mac
}

func (d *Driver) Close() error {
	if d.handle != nil {
		d.handle.Close()
		d.handle = nil
		d.log.Info("afpacket driver closed")
	}
	return nil
}
