// Package filter selects Ethernet frames with classic BPF programs run in
// the pure-Go virtual machine of golang.org/x/net/bpf.
package filter

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"
)

// maxFrameLen bounds the frames a compiled program may inspect; ERF
// records cannot carry more.
const maxFrameLen = 65535

// BPF matches frames accepted by a BPF program.
type BPF struct {
	expr string
	vm   *bpf.VM

	matched  atomic.Uint64
	rejected atomic.Uint64
}

// New compiles a tcpdump expression. An empty expression yields a nil
// filter, which callers treat as match-all.
func New(expr string) (*BPF, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	insns, err := assemble(expr)
	if err != nil {
		return nil, err
	}
	return FromInstructions(expr, insns)
}

// assemble lets libpcap compile expr for Ethernet frames and converts the
// result into x/net/bpf instructions for the VM.
func assemble(expr string) ([]bpf.Instruction, error) {
	prog, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, maxFrameLen, expr)
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", expr, err)
	}

	raw := make([]bpf.RawInstruction, 0, len(prog))
	for _, in := range prog {
		raw = append(raw, bpf.RawInstruction{Op: in.Code, Jt: in.Jt, Jf: in.Jf, K: in.K})
	}

	insns, ok := bpf.Disassemble(raw)
	if !ok {
		// Unknown opcodes stay RawInstruction, which the VM refuses.
		return nil, fmt.Errorf("filter %q: program contains unsupported instructions", expr)
	}
	return insns, nil
}

// FromInstructions wraps an already assembled program.
func FromInstructions(expr string, insns []bpf.Instruction) (*BPF, error) {
	vm, err := bpf.NewVM(insns)
	if err != nil {
		return nil, fmt.Errorf("filter %q: invalid BPF program: %w", expr, err)
	}
	return &BPF{expr: expr, vm: vm}, nil
}

// Match runs the program against one Ethernet frame. A non-zero return
// value accepts the frame; VM errors reject it. A nil filter matches
// everything.
func (f *BPF) Match(frame []byte) bool {
	if f == nil {
		return true
	}
	n, err := f.vm.Run(frame)
	if err != nil || n == 0 {
		f.rejected.Add(1)
		return false
	}
	f.matched.Add(1)
	return true
}

// Stats returns how many frames were matched and rejected so far.
func (f *BPF) Stats() (matched, rejected uint64) {
	if f == nil {
		return 0, 0
	}
	return f.matched.Load(), f.rejected.Load()
}

func (f *BPF) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}
