package utils

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"
)

// CompileBPF compiles a tcpdump-style filter expression into raw BPF
// instructions for an Ethernet link.
func CompileBPF(filter string, snapLen int) ([]bpf.RawInstruction, error) {
	pcapBpf, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, snapLen, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to compile BPF filter: %w", err)
	}

	rawBpf := make([]bpf.RawInstruction, len(pcapBpf))
	for i, ins := range pcapBpf {
		rawBpf[i] = bpf.RawInstruction{Op: ins.Code, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	return rawBpf, nil
}

// Matcher evaluates a compiled BPF program against raw frames in userspace.
// Used where no kernel socket is involved, e.g. synthetic traffic.
type Matcher struct {
	vm *bpf.VM
}

// NewMatcher compiles the filter expression and loads it into a BPF VM.
func NewMatcher(filter string, snapLen int) (*Matcher, error) {
	raw, err := CompileBPF(filter, snapLen)
	if err != nil {
		return nil, err
	}
	instrs, allDecoded := bpf.Disassemble(raw)
	if !allDecoded {
		return nil, fmt.Errorf("BPF filter %q uses undecodable instructions", filter)
	}
	vm, err := bpf.NewVM(instrs)
	if err != nil {
		return nil, fmt.Errorf("failed to load BPF program: %w", err)
	}
	return &Matcher{vm: vm}, nil
}

// Match reports whether the frame passes the filter.
func (m *Matcher) Match(data []byte) bool {
	n, err := m.vm.Run(data)
	return err == nil && n > 0
}
