package afpacket

import (
	"fmt"
	"net/netip"

	"golang.org/x/net/bpf"
)

// Offsets into an untagged Ethernet/IPv4 frame.
const (
	offEtherType = 12
	offIPFlags   = 20
	offIPProto   = 23
	offIPDst     = 30
	offIPHeader  = 14
	offUDPDst    = offIPHeader + 2 // relative to X, the IPv4 header length

	etherTypeIPv4 = 0x0800
	protocolUDP   = 17
	fragmentMask  = 0x1fff
)

// udpFilter builds a classic BPF program accepting unfragmented IPv4/UDP
// frames, optionally limited to one destination address and port. A zero
// port or an invalid address drops that condition.
func udpFilter(dst netip.Addr, port uint16, snapLen int) ([]bpf.Instruction, error) {
	if dst.IsValid() && !dst.Is4() {
		return nil, fmt.Errorf("filter address %v is not IPv4", dst)
	}

	prog := []bpf.Instruction{
		bpf.LoadAbsolute{Off: offEtherType, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: etherTypeIPv4},
		bpf.LoadAbsolute{Off: offIPProto, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: protocolUDP},
		bpf.LoadAbsolute{Off: offIPFlags, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpBitsSet, Val: fragmentMask},
	}
	if dst.IsValid() && !dst.IsUnspecified() {
		a := dst.As4()
		ip := uint32(a[0])<<24 | uint32(a[1])<<16 | uint32(a[2])<<8 | uint32(a[3])
		prog = append(prog,
			bpf.LoadAbsolute{Off: offIPDst, Size: 4},
			bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: ip},
		)
	}
	if port != 0 {
		prog = append(prog,
			bpf.LoadMemShift{Off: offIPHeader},
			bpf.LoadIndirect{Off: offUDPDst, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: uint32(port)},
		)
	}
	prog = append(prog,
		bpf.RetConstant{Val: uint32(snapLen)},
		bpf.RetConstant{Val: 0},
	)

	// every conditional jumps to the final drop when its test is true
	drop := len(prog) - 1
	for i, insn := range prog {
		if j, ok := insn.(bpf.JumpIf); ok {
			j.SkipTrue = uint8(drop - i - 1)
			prog[i] = j
		}
	}
	return prog, nil
}

// assembleUDPFilter returns udpFilter in the raw form SetBPF takes.
func assembleUDPFilter(dst netip.Addr, port uint16, snapLen int) ([]bpf.RawInstruction, error) {
	prog, err := udpFilter(dst, port, snapLen)
	if err != nil {
		return nil, err
	}
	return bpf.Assemble(prog)
}
