package utils

import (
	"fmt"

	"golang.org/x/net/bpf"
)

// udpHeaderLen is where the payload starts for a filter attached to a UDP
// socket: the kernel runs socket filters with the UDP header in front.
const udpHeaderLen = 8

// MarkerFilter assembles a socket filter that accepts only datagrams whose
// payload starts with the 32-bit big-endian marker.
func MarkerFilter(marker uint32) ([]bpf.RawInstruction, error) {
	prog, err := bpf.Assemble([]bpf.Instruction{
		bpf.LoadAbsolute{Off: udpHeaderLen, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: marker, SkipFalse: 1},
		bpf.RetConstant{Val: 0xFFFF},
		bpf.RetConstant{Val: 0},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to assemble BPF filter: %w", err)
	}
	return prog, nil
}
